package wallet

// State is one step of the wallet deployment lifecycle. Transitions move
// forward only, except Cancel which resets a deployment in progress back to
// draft.
type State int

const (
	// StateDraft is the initial state; owners and threshold are mutable.
	StateDraft State = iota
	// StateDeploying means a creation quote was requested; safe address and
	// fee are not known yet.
	StateDeploying
	// StateWaitingForFirstDeposit means the safe address and fee are known
	// and no funds have arrived yet.
	StateWaitingForFirstDeposit
	// StateNotEnoughFunds means a partial deposit arrived, below the
	// minimum deployment amount.
	StateNotEnoughFunds
	// StateCreationStarted means the deployment is funded and the relay has
	// been (or is being) asked to broadcast the creation transaction.
	StateCreationStarted
	// StateFinalizingDeployment means the creation transaction was mined and
	// post-processing has not completed yet.
	StateFinalizingDeployment
	// StateReadyToUse is the terminal happy state.
	StateReadyToUse
	// StateRecovering means a recovery transaction is replacing lost owners.
	StateRecovering
	// StateCreationFailed is the terminal state after the creation
	// transaction failed on-chain.
	StateCreationFailed
)

func (s State) String() string {
	switch s {
	case StateDraft:
		return "draft"
	case StateDeploying:
		return "deploying"
	case StateWaitingForFirstDeposit:
		return "waitingForFirstDeposit"
	case StateNotEnoughFunds:
		return "notEnoughFunds"
	case StateCreationStarted:
		return "creationStarted"
	case StateFinalizingDeployment:
		return "finalizingDeployment"
	case StateReadyToUse:
		return "readyToUse"
	case StateRecovering:
		return "recovering"
	case StateCreationFailed:
		return "creationFailed"
	}
	return "unknown"
}

// IsTerminal reports whether no further deployment transitions are possible.
func (s State) IsTerminal() bool {
	return s == StateReadyToUse || s == StateCreationFailed
}

// InProgress reports whether a deployment is underway (past draft, not
// finished).
func (s State) InProgress() bool {
	switch s {
	case StateDeploying, StateWaitingForFirstDeposit, StateNotEnoughFunds,
		StateCreationStarted, StateFinalizingDeployment:
		return true
	}
	return false
}
