package query

// The convenience builders below are thin Config factories. Target compilers
// expose them as methods so callers funnel through the full compile pipeline
// rather than assembling native syntax by hand.

// GetByID builds the config for fetching a single document by its ID.
func GetByID(docType, id string) Config {
	return Config{
		Types:  TypeList{docType},
		Filter: []Condition{{Field: "id", Operator: OpEqual, Value: id}},
		Limit:  1,
	}
}

// GetByType builds the config for listing documents of one type.
func GetByType(docType string, limit, offset int) Config {
	return Config{
		Types:  TypeList{docType},
		Limit:  limit,
		Offset: offset,
	}
}

// ReferencedBy builds the config for finding documents that hold a reference
// to the document with the given ID, anywhere in their body.
func ReferencedBy(id string) Config {
	return Config{
		Filter: []Condition{{Operator: OpReferences, Value: id}},
	}
}
