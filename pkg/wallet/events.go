package wallet

// Deployment lifecycle events, published on each state transition. The UI
// and notification layers subscribe by event type.
const (
	EventDeploymentStarted                   = "wallet.deployment_started"
	EventStartedWaitingForFirstDeposit       = "wallet.waiting_for_first_deposit"
	EventStartedWaitingForRemainingFeeAmount = "wallet.waiting_for_remaining_fee"
	EventDeploymentFunded                    = "wallet.deployment_funded"
	EventCreationStarted                     = "wallet.creation_started"
	EventWalletCreated                       = "wallet.created"
	EventWalletCreationFailed                = "wallet.creation_failed"
	EventDeploymentAborted                   = "wallet.deployment_aborted"
)

// DeploymentStarted fires when a draft wallet enters deployment.
type DeploymentStarted struct {
	WalletID ID
}

func (DeploymentStarted) EventType() string { return EventDeploymentStarted }

// StartedWaitingForFirstDeposit fires when the safe address and fee become
// known and the wallet awaits its first funds.
type StartedWaitingForFirstDeposit struct {
	WalletID ID
}

func (StartedWaitingForFirstDeposit) EventType() string {
	return EventStartedWaitingForFirstDeposit
}

// StartedWaitingForRemainingFeeAmount fires when a partial deposit was
// observed, below the minimum deployment amount.
type StartedWaitingForRemainingFeeAmount struct {
	WalletID ID
}

func (StartedWaitingForRemainingFeeAmount) EventType() string {
	return EventStartedWaitingForRemainingFeeAmount
}

// DeploymentFunded fires when the observed balance reaches the minimum
// deployment amount.
type DeploymentFunded struct {
	WalletID ID
}

func (DeploymentFunded) EventType() string { return EventDeploymentFunded }

// CreationStarted fires when the relay is asked to broadcast the creation
// transaction.
type CreationStarted struct {
	WalletID ID
}

func (CreationStarted) EventType() string { return EventCreationStarted }

// WalletCreated fires when the creation transaction was mined successfully.
type WalletCreated struct {
	WalletID ID
}

func (WalletCreated) EventType() string { return EventWalletCreated }

// WalletCreationFailed fires when the creation transaction was mined but
// failed on-chain.
type WalletCreationFailed struct {
	WalletID ID
}

func (WalletCreationFailed) EventType() string { return EventWalletCreationFailed }

// DeploymentAborted fires when a deployment in progress is cancelled back to
// draft.
type DeploymentAborted struct {
	WalletID ID
}

func (DeploymentAborted) EventType() string { return EventDeploymentAborted }
