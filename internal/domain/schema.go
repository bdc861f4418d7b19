package domain

// FieldType is the declared semantic type of a canonical column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldNumeric
	FieldBoolean
)

func (t FieldType) String() string {
	switch t {
	case FieldNumeric:
		return "numeric"
	case FieldBoolean:
		return "boolean"
	default:
		return "text"
	}
}

// SchemaField is one column of the canonical spreadsheet schema.
type SchemaField struct {
	Name string
	Type FieldType
}

// Canonical column names.
const (
	FieldPrice        = "price"
	FieldManufacturer = "manufacturer"
	FieldMold         = "mold"
	FieldPlastic      = "plastic"
	FieldColor        = "color"
	FieldCondition    = "condition"
	FieldInk          = "ink"
	FieldPicture      = "picture"
	FieldPriceShipped = "price_shipped"
	FieldStamp        = "stamp"
	FieldWeight       = "weight"
	FieldStatus       = "status"
	FieldNotes        = "notes"
	FieldWeightScaled = "weight_scaled"
	FieldDocumentID   = "document_id"
	FieldDocumentURL  = "document_url"
)

// CanonicalSchema is the normalization target for every detected header. Cell
// values are not validated against the declared types.
var CanonicalSchema = []SchemaField{
	{FieldPrice, FieldNumeric},
	{FieldManufacturer, FieldText},
	{FieldMold, FieldText},
	{FieldPlastic, FieldText},
	{FieldColor, FieldText},
	{FieldCondition, FieldNumeric},
	{FieldInk, FieldBoolean},
	{FieldPicture, FieldText},
	{FieldPriceShipped, FieldBoolean},
	{FieldStamp, FieldText},
	{FieldWeight, FieldNumeric},
	{FieldStatus, FieldBoolean},
	{FieldNotes, FieldText},
	{FieldWeightScaled, FieldNumeric},
	{FieldDocumentID, FieldText},
	{FieldDocumentURL, FieldText},
}

var canonicalNames = func() map[string]struct{} {
	m := make(map[string]struct{}, len(CanonicalSchema))
	for _, f := range CanonicalSchema {
		m[f.Name] = struct{}{}
	}
	return m
}()

// IsCanonical reports whether label is exactly a canonical column name.
func IsCanonical(label string) bool {
	_, ok := canonicalNames[label]
	return ok
}

// FieldSynonyms lists the raw label variants recognized as one canonical field.
type FieldSynonyms struct {
	Field    string
	Synonyms []string
}

// SynonymTable is ordered: earlier fields win when several match a label.
type SynonymTable []FieldSynonyms

// DefaultSynonyms is built from the most common labels seen in shared sale
// sheets.
var DefaultSynonyms = SynonymTable{
	{FieldPrice, []string{"price", "bin", "buy it now", "amount", "cost"}},
	{FieldManufacturer, []string{"manuf", "company", "brand", "mfg"}},
	{FieldMold, []string{"mold", "mold name", "model", "disc", "name"}},
	{FieldPlastic, []string{"plastic"}},
	{FieldColor, []string{"color", "colour"}},
	{FieldCondition, []string{"condition", "cond.", "rating"}},
	{FieldInk, []string{"ink", "marked"}},
	{FieldPicture, []string{"image", "photo", "pic"}},
	{FieldPriceShipped, []string{"shipp"}},
	{FieldStamp, []string{"stamp"}},
	{FieldWeight, []string{"weight", "grams"}},
	{FieldStatus, []string{"status"}},
	{FieldNotes, []string{"note", "comment", "details"}},
	{FieldWeightScaled, []string{"scale"}},
}
