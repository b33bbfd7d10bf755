package domain

// Actor is the non-human account every pipeline write is attributed to.
// It is resolved once at process start and passed into the services.
type Actor struct {
	ID        string `json:"id" db:"id"`
	Email     string `json:"email" db:"email"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
}

// IntegrationsActor is the identity used when the actor row does not exist yet.
var IntegrationsActor = Actor{
	Email:     "integrations@mymemorymaker.com",
	FirstName: "MyMemoryMaker",
	LastName:  "Integrations API",
}
