package constants

// Canonical register columns, in spreadsheet order.
const (
	FieldDate     = "Date"
	FieldName     = "Name"
	FieldAge      = "Age"
	FieldMobileNo = "Mobile No"
	FieldAmount   = "Amount"
)

// FieldSourceFile is stamped on every record with the originating image name.
const FieldSourceFile = "SourceFile"

// NA marks a value that is unknown or unreadable.
const NA = "NA"

var canonicalFields = []string{
	FieldDate,
	FieldName,
	FieldAge,
	FieldMobileNo,
	FieldAmount,
}

// CanonicalFields returns a fresh copy of the canonical field order.
func CanonicalFields() []string {
	out := make([]string, len(canonicalFields))
	copy(out, canonicalFields)
	return out
}

// IsCanonical reports whether name is one of the five register fields.
func IsCanonical(name string) bool {
	for _, f := range canonicalFields {
		if f == name {
			return true
		}
	}
	return false
}

// NumericFields are the canonical fields that hold digits when read correctly.
func NumericFields() []string {
	return []string{FieldMobileNo, FieldAge, FieldAmount}
}
