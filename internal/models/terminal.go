package models

// Terminal is a reception-desk scanning station. Department is the name the
// desk serves and is matched against the department printed on passes.
type Terminal struct {
	ID         string `json:"id" yaml:"id"`
	Department string `json:"department" yaml:"department"`
	Office     string `json:"office,omitempty" yaml:"office"`
	KeyHash    string `json:"-" yaml:"key_hash"`
}
