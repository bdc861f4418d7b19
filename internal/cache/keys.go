package cache

// Key layout shared by the pipeline and the normalization pass.
const (
	postKeyPrefix    = "post:"
	sheetFieldPrefix = "sheet:"

	// SheetsHash holds one raw SheetPost per downloaded document.
	SheetsHash = "sheets"

	// NormalizedHash holds the normalized copy of every SheetsHash entry.
	NormalizedHash = "normalized"

	// SheetFieldPattern matches every document field of SheetsHash.
	SheetFieldPattern = sheetFieldPrefix + "*"
)

// PostKey returns the key a parsed post is stored under.
func PostKey(postID string) string {
	return postKeyPrefix + postID
}

// SheetField returns the hash field a downloaded document is stored under.
func SheetField(documentID string) string {
	return sheetFieldPrefix + documentID
}
