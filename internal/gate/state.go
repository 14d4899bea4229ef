package gate

import "github.com/terraincognita07/us/internal/models"

type State int

const (
	Unauthenticated State = iota
	Checking
	AuthenticatedNoCouple
	AuthenticatedWithCouple
)

func (state State) String() string {
	switch state {
	case Unauthenticated:
		return "unauthenticated"
	case Checking:
		return "checking"
	case AuthenticatedNoCouple:
		return "authenticated_no_couple"
	case AuthenticatedWithCouple:
		return "authenticated_with_couple"
	default:
		return "unknown"
	}
}

type Stack string

const (
	StackNone Stack = ""
	StackAuth Stack = "auth"
	StackMain Stack = "main"
)

const (
	RouteWelcome             = "Welcome"
	RouteLogin               = "Login"
	RouteSignUp              = "SignUp"
	RouteForgotPassword      = "ForgotPassword"
	RouteCoupleProfileChoice = "CoupleProfileChoice"
	RouteCreateCoupleProfile = "CreateCoupleProfile"

	RouteHome       = "Home"
	RouteDiary      = "Diary"
	RouteMoodSync   = "MoodSync"
	RouteMemoryMap  = "MemoryMap"
	RouteDreamBoard = "DreamBoard"
	RouteSettings   = "Settings"
)

func AuthRoutes() []string {
	return []string{RouteWelcome, RouteLogin, RouteSignUp, RouteForgotPassword, RouteCoupleProfileChoice, RouteCreateCoupleProfile}
}

func MainRoutes() []string {
	return []string{RouteHome, RouteDiary, RouteMoodSync, RouteMemoryMap, RouteDreamBoard, RouteSettings}
}

// Screen is what the app shell should render. A zero Screen means render nothing.
type Screen struct {
	Stack Stack
	Route string
}

// Snapshot is an immutable view of the gate. Version grows with every transition.
type Snapshot struct {
	State   State
	Session *models.Session
	Version uint64
}

func (snapshot Snapshot) Screen() Screen {
	switch snapshot.State {
	case Unauthenticated:
		return Screen{Stack: StackAuth, Route: RouteWelcome}
	case AuthenticatedNoCouple:
		return Screen{Stack: StackAuth, Route: RouteCoupleProfileChoice}
	case AuthenticatedWithCouple:
		return Screen{Stack: StackMain, Route: RouteHome}
	default:
		return Screen{}
	}
}

func (snapshot Snapshot) UserID() string {
	if snapshot.Session == nil {
		return ""
	}
	return snapshot.Session.User.ID
}
