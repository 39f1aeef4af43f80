package domain

import "time"

// Knowledge collection names in the document store.
const (
	CollectionFacts      = "facts"
	CollectionGuidelines = "guidelines"
	CollectionTemplates  = "templates"
	CollectionSkills     = "skills"
	CollectionRouting    = "routing_contexts"
)

// Fact is a persisted piece of agent knowledge.
type Fact struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Tags      []string  `json:"tags,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Guideline is a standing instruction always injected into agent context.
// Higher priority guidelines are injected first.
type Guideline struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Template is a reusable prompt template addressed by name.
type Template struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Skill is a trigger-activated template: when the trigger phrase occurs in
// a prompt, the skill's template is injected into agent context.
type Skill struct {
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Trigger     string    `json:"trigger"`
	Template    string    `json:"template"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
