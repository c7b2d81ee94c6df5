package dto

import "encoding/json"

// OptionalID distinguishes an absent id from an explicit null in a JSON
// body.
type OptionalID struct {
	Set   bool
	Value *uint64
}

func (o *OptionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var id uint64
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	o.Value = &id
	return nil
}
