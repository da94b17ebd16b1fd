package transit

// Service is a currently operated bus service, grouping one or more
// timetabled routes from a single data source.
type Service struct {
	PrimaryIdentifier string `bson:",omitempty"`

	CreationDateTime     string `bson:",omitempty"`
	ModificationDateTime string `bson:",omitempty"`

	DataSource string `bson:",omitempty"`

	ServiceName string `bson:",omitempty"`

	Current bool

	OperatorRef string `bson:",omitempty"`

	Routes []Route `bson:",omitempty"`
}

type Route struct {
	Code string
}
