package deployment

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"

	"github.com/safekit/safed/pkg/contracts"
	"github.com/safekit/safed/pkg/relay"
)

// Validation failures of a relay creation quote. All of them abort the
// deployment; the relay is never trusted with unchecked parameters.
var (
	ErrInvalidPaymentToken    = errors.New("deployment: quote changed the payment token")
	ErrInvalidMasterCopy      = errors.New("deployment: quote uses an unknown master copy")
	ErrInvalidProxyFactory    = errors.New("deployment: quote uses an untrusted proxy factory")
	ErrInvalidPaymentReceiver = errors.New("deployment: quote pays an untrusted receiver")
	ErrInvalidSetupData       = errors.New("deployment: quote setup data does not match the requested owners")
	ErrInvalidSafeAddress     = errors.New("deployment: quoted address does not match local derivation")
)

// ResponseValidator re-derives every security-relevant field of a creation
// quote locally and rejects the quote on any mismatch.
type ResponseValidator struct {
	metadata *contracts.MetadataRepository
	proxy    contracts.SafeProxy
}

func NewResponseValidator(metadata *contracts.MetadataRepository) *ResponseValidator {
	return &ResponseValidator{metadata: metadata}
}

// Validate checks a quote against the request it answers and the salt nonce
// used for it.
func (v *ResponseValidator) Validate(resp *relay.SafeCreationResponse, req relay.SafeCreationRequest, saltNonce *big.Int) error {
	if !resp.PaymentToken.Equals(req.PaymentToken) {
		return ErrInvalidPaymentToken
	}
	if !v.metadata.IsValidMasterCopy(resp.MasterCopy) {
		return ErrInvalidMasterCopy
	}
	if !v.metadata.IsValidProxyFactory(resp.ProxyFactory) {
		return ErrInvalidProxyFactory
	}
	if !v.metadata.IsValidPaymentReceiver(resp.PaymentReceiver) {
		return ErrInvalidPaymentReceiver
	}

	setupData := v.proxy.EncodeSetup(contracts.SafeSetup{
		Owners:          req.Owners,
		Threshold:       req.Threshold,
		PaymentToken:    resp.PaymentToken,
		Payment:         resp.Payment,
		PaymentReceiver: resp.PaymentReceiver,
	})
	if !bytes.Equal(setupData, resp.SetupData) {
		return ErrInvalidSetupData
	}

	deploymentCode := v.metadata.DeploymentCode(resp.MasterCopy)
	derived := contracts.Create2Address(resp.ProxyFactory, setupData, saltNonce, deploymentCode)
	if !derived.Equals(resp.SafeAddress) {
		return fmt.Errorf("%w: got %s, derived %s", ErrInvalidSafeAddress, resp.SafeAddress, derived)
	}
	return nil
}
