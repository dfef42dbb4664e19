package session

// state identifies the next state* method Run's switch calls and names it
// in the logs — the dispatch itself is ordinary Go control flow between
// the state* methods below, not a table.
type state int

const (
	stateBoot state = iota
	stateIdentify
	stateIdle
	stateClassify
	stateRunSession
	stateGraceRemoval
	stateGraceTimeout
	stateForgottenCard
	stateUnauthorizedRemoval
	stateShutdown
)

func (s state) String() string {
	switch s {
	case stateBoot:
		return "Boot"
	case stateIdentify:
		return "Identify"
	case stateIdle:
		return "Idle"
	case stateClassify:
		return "Classify"
	case stateRunSession:
		return "RunSession"
	case stateGraceRemoval:
		return "GraceRemoval"
	case stateGraceTimeout:
		return "GraceTimeout"
	case stateForgottenCard:
		return "ForgottenCard"
	case stateUnauthorizedRemoval:
		return "UnauthorizedRemoval"
	case stateShutdown:
		return "Shutdown"
	default:
		return "Unknown"
	}
}

// Result reports how Run ended, so cmd/portalboxd can choose the right
// exit path: OS halt for a shutdown card, plain exit otherwise.
type Result struct {
	// Halt is true when a shutdown card ended the session — the caller
	// should request an OS shutdown. False means a clean exit via
	// SIGINT/SIGTERM or an identify failure after a stop request.
	Halt bool
	// Identified is false if Run returned because Stop was called before
	// an equipment profile was ever found — cmd/portalboxd maps this to
	// exit code 1.
	Identified bool
}

// Run drives the machine from Boot until a shutdown card or Stop(),
// looping through the access-control states.
func (m *Machine) Run() Result {
	cur := stateBoot
	var haltRequested bool

	for {
		m.logger.Debug("session: entering state", "state", cur.String())
		switch cur {
		case stateBoot:
			cur = m.stateBoot()
		case stateIdentify:
			if !m.stateIdentify() {
				return Result{Halt: false, Identified: false}
			}
			cur = stateIdle
		case stateIdle:
			cur = m.stateIdle()
		case stateClassify:
			var halt bool
			cur, halt = m.stateClassify()
			if halt {
				haltRequested = true
			}
		case stateRunSession:
			cur = m.stateRunSession()
		case stateGraceRemoval:
			cur = m.stateGraceRemoval()
		case stateGraceTimeout:
			cur = m.stateGraceTimeout()
		case stateForgottenCard:
			cur = m.stateForgottenCard()
		case stateUnauthorizedRemoval:
			cur = m.stateUnauthorizedRemoval()
		case stateShutdown:
			m.stateShutdown(haltRequested)
			return Result{Halt: haltRequested, Identified: true}
		}
	}
}
