package domain

// MessageType is the value of the mandatory "type" field of every protocol message.
type MessageType string

const (
	MsgRegister   MessageType = "register"
	MsgAck        MessageType = "ack"
	MsgDeregister MessageType = "deregister"
	MsgRequest    MessageType = "request"
	MsgResponse   MessageType = "response"
	MsgWaiting    MessageType = "waiting"
)

// Valid reports whether t is one of the six protocol message types.
func (t MessageType) Valid() bool {
	switch t {
	case MsgRegister, MsgAck, MsgDeregister, MsgRequest, MsgResponse, MsgWaiting:
		return true
	}
	return false
}

// FromWorker reports whether t may legitimately arrive at the master.
func (t MessageType) FromWorker() bool {
	return t == MsgRegister || t == MsgDeregister || t == MsgRequest
}

// AtomForce is the state of one atom as reported by a worker.
// Only the force components are required on the wire; position and
// velocity are optional and used by batch corrections.
type AtomForce struct {
	X  float64 `json:"x,omitempty"`
	Y  float64 `json:"y,omitempty"`
	Z  float64 `json:"z,omitempty"`
	VX float64 `json:"vx,omitempty"`
	VY float64 `json:"vy,omitempty"`
	VZ float64 `json:"vz,omitempty"`
	FX float64 `json:"fx"`
	FY float64 `json:"fy"`
	FZ float64 `json:"fz"`
}

// AtomCorrection is the force delta a worker adds to one atom.
type AtomCorrection struct {
	DFX float64 `json:"dfx"`
	DFY float64 `json:"dfy"`
	DFZ float64 `json:"dfz"`
}

// Message is the decoded form of a protocol message.
//
// Forces is populated for request messages and Corrections for response
// messages; both are encoded under the "atoms" key.
type Message struct {
	Type           MessageType
	UID            *uint64
	ExpectResponse float64
	Forces         []AtomForce
	Corrections    []AtomCorrection
}

// UIDOf returns a pointer to a copy of uid.
func UIDOf(uid uint64) *uint64 {
	return &uid
}

func NewRegister() *Message {
	return &Message{Type: MsgRegister}
}

func NewAck(uid *uint64) *Message {
	return &Message{Type: MsgAck, UID: uid}
}

func NewDeregister(uid *uint64) *Message {
	return &Message{Type: MsgDeregister, UID: uid}
}

func NewWaiting() *Message {
	return &Message{Type: MsgWaiting}
}

// NewRequest builds a request; a nil atom list is normalised to an empty one.
func NewRequest(uid *uint64, atoms []AtomForce) *Message {
	if atoms == nil {
		atoms = []AtomForce{}
	}
	return &Message{Type: MsgRequest, UID: uid, Forces: atoms}
}

// NewResponse builds a response; a nil correction list is normalised to an empty one.
func NewResponse(uid *uint64, fixes []AtomCorrection) *Message {
	if fixes == nil {
		fixes = []AtomCorrection{}
	}
	return &Message{Type: MsgResponse, UID: uid, Corrections: fixes}
}
