package models

// Profile is owned by the profile subsystem; posts only consult its owner
type Profile struct {
	User   string `json:"user" bson:"user"`
	Handle string `json:"handle" bson:"handle"`
}
