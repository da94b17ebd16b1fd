package transit

import "time"

// Trip is a single timetabled run of a Service.
//
// Start is the scheduled departure expressed as an offset from the service
// day midnight, which can exceed 24 hours for runs that belong to the
// previous day's timetable.
type Trip struct {
	PrimaryIdentifier string `bson:",omitempty"`

	CreationDateTime     string `bson:",omitempty"`
	ModificationDateTime string `bson:",omitempty"`

	DataSource string `bson:",omitempty"`

	TicketMachineCode string `bson:",omitempty"`

	ServiceRef  string `bson:",omitempty"`
	RouteCode   string `bson:",omitempty"`
	CalendarRef string `bson:",omitempty"`
	OperatorRef string `bson:",omitempty"`

	Start   time.Duration
	Inbound bool

	DestinationDisplay string `bson:",omitempty"`
}
