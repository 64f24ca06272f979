package store

// PassID is a type-safe identifier for passes.
type PassID int64

// EntityID is a type-safe identifier for entities.
type EntityID int64

// EntityKind is the kind of a classified declaration.
type EntityKind string

const (
	EntityKindType        EntityKind = "type"
	EntityKindProperty    EntityKind = "property"
	EntityKindMethod      EntityKind = "method"
	EntityKindConstructor EntityKind = "constructor"
)

// Pass represents one generation pass.
type Pass struct {
	ID             PassID   `json:"id"`
	Name           string   `json:"name"`
	ServerDirs     []string `json:"server_dirs"`
	ClientDirs     []string `json:"client_dirs"`
	ServerPackages int      `json:"server_packages"`
	ClientPackages int      `json:"client_packages"`
	SharedFiles    int      `json:"shared_files"` // distinct files in the shared set
	Failures       int      `json:"failures"`     // recoverable load failures
	ScannedAt      string   `json:"scanned_at"`
}

// Entity represents a classified server entity.
type Entity struct {
	ID        EntityID   `json:"id"`
	PassID    PassID     `json:"pass_id"`
	Pass      string     `json:"pass,omitempty"`
	Key       string     `json:"key"` // canonical member key
	Kind      EntityKind `json:"kind"`
	TypeName  string     `json:"type_name"`
	Member    string     `json:"member,omitempty"`
	Params    string     `json:"params,omitempty"` // comma separated parameter types
	ShareKind string     `json:"share_kind"`
	Files     []string   `json:"files,omitempty"`
}

// Diagnostic reports a member classified differently from its type.
type Diagnostic struct {
	ID        int64  `json:"id"`
	PassID    PassID `json:"pass_id"`
	Pass      string `json:"pass,omitempty"`
	TypeKey   string `json:"type_key"`
	MemberKey string `json:"member_key"`
	Message   string `json:"message"`
}

// EntityFilter narrows ListEntities. Zero fields do not filter.
type EntityFilter struct {
	Pass      string
	ShareKind string
	Kind      EntityKind
	TypeName  string
	Limit     int
	Offset    int
}
