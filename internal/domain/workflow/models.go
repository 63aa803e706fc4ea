package workflow

type (
	Status string
	Action string
	Actor  string
	Party  string
)

// Actor relations a requester can hold towards a record. One user can hold
// several at once, e.g. a supervisor who is also in HR.
const (
	ActorEmployee   Actor = "employee"
	ActorSupervisor Actor = "supervisor"
	ActorApprover   Actor = "approver"
	ActorHR         Actor = "hr"
	ActorAdmin      Actor = "admin"
)

// Notification recipients resolved by the caller.
const (
	PartyEmployee   Party = "employee"
	PartySupervisor Party = "supervisor"
	PartyApprover   Party = "approver"
	PartyAllHR      Party = "all_hr"
)

type Notice struct {
	To      []Party
	Type    string
	Title   string
	Message string
}

type Transition struct {
	Action         Action
	From           []Status
	To             Status
	Actors         []Actor
	RequiresReason bool
	Stamps         []string
	Notices        []Notice
	AuditAction    string
}

// Outcome is what a caller must persist and dispatch after a successful fire.
type Outcome struct {
	Action      Action
	From        Status
	To          Status
	Actor       Actor
	Reason      string
	Stamps      []string
	Notices     []Notice
	AuditAction string
}

// Actors is the set of relations a requester holds.
type Actors map[Actor]bool

func NewActors(actors ...Actor) Actors {
	set := Actors{}
	for _, a := range actors {
		set[a] = true
	}
	return set
}

func (a Actors) Has(actor Actor) bool {
	return a[actor]
}

func (a Actors) Add(actor Actor) {
	a[actor] = true
}
