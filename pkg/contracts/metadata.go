package contracts

import (
	"github.com/samber/lo"

	"github.com/safekit/safed/pkg/ethtypes"
)

// MasterCopyMetadata describes one known Safe master copy (singleton)
// contract. DeploymentCode is the proxy creation bytecode the factory uses
// for this master copy, needed for CREATE2 address derivation.
type MasterCopyMetadata struct {
	Address        ethtypes.Address
	Version        string
	DeploymentCode []byte
}

// MultiSendMetadata maps a deployed MultiSend contract to its blob-layout
// version.
type MultiSendMetadata struct {
	Address ethtypes.Address
	Version int
}

// SafeContractMetadata is the allow-list of contract addresses the wallet
// trusts: master copies, the proxy factory, relay funder accounts and
// MultiSend deployments. Configured per network at startup.
type SafeContractMetadata struct {
	ProxyFactory ethtypes.Address
	SafeFunders  []ethtypes.Address
	MasterCopies []MasterCopyMetadata
	MultiSend    []MultiSendMetadata
}

// MetadataRepository answers trust and version questions about the
// configured contract set. It is immutable after construction.
type MetadataRepository struct {
	metadata SafeContractMetadata
}

// NewMetadataRepository builds a repository over fixed metadata.
func NewMetadataRepository(metadata SafeContractMetadata) *MetadataRepository {
	return &MetadataRepository{metadata: metadata}
}

// ProxyFactoryAddress returns the trusted proxy factory.
func (r *MetadataRepository) ProxyFactoryAddress() ethtypes.Address {
	return r.metadata.ProxyFactory
}

// IsValidProxyFactory reports whether address is the trusted factory.
func (r *MetadataRepository) IsValidProxyFactory(address ethtypes.Address) bool {
	return r.metadata.ProxyFactory.Equals(address)
}

// IsValidMasterCopy reports whether address is a known Safe master copy.
func (r *MetadataRepository) IsValidMasterCopy(address ethtypes.Address) bool {
	return lo.ContainsBy(r.metadata.MasterCopies, func(m MasterCopyMetadata) bool {
		return m.Address.Equals(address)
	})
}

// IsValidPaymentReceiver reports whether address may receive the deployment
// fee: the zero address (relay default) or an allow-listed funder.
func (r *MetadataRepository) IsValidPaymentReceiver(address ethtypes.Address) bool {
	return address.IsZero() || lo.ContainsBy(r.metadata.SafeFunders, func(f ethtypes.Address) bool {
		return f.Equals(address)
	})
}

// LatestMasterCopyAddress returns the newest configured master copy.
func (r *MetadataRepository) LatestMasterCopyAddress() ethtypes.Address {
	if len(r.metadata.MasterCopies) == 0 {
		return ethtypes.ZeroAddress
	}
	return r.metadata.MasterCopies[len(r.metadata.MasterCopies)-1].Address
}

// ContractVersion returns the version string of a master copy, or empty when
// unknown.
func (r *MetadataRepository) ContractVersion(masterCopy ethtypes.Address) string {
	m, ok := lo.Find(r.metadata.MasterCopies, func(m MasterCopyMetadata) bool {
		return m.Address.Equals(masterCopy)
	})
	if !ok {
		return ""
	}
	return m.Version
}

// DeploymentCode returns the proxy creation bytecode for a master copy, or
// nil when the master copy is unknown.
func (r *MetadataRepository) DeploymentCode(masterCopy ethtypes.Address) []byte {
	m, ok := lo.Find(r.metadata.MasterCopies, func(m MasterCopyMetadata) bool {
		return m.Address.Equals(masterCopy)
	})
	if !ok {
		return nil
	}
	return m.DeploymentCode
}

// MultiSendAddress returns the newest configured MultiSend contract.
func (r *MetadataRepository) MultiSendAddress() ethtypes.Address {
	if len(r.metadata.MultiSend) == 0 {
		return ethtypes.ZeroAddress
	}
	return r.metadata.MultiSend[len(r.metadata.MultiSend)-1].Address
}

// MultiSendVersion returns the blob-layout version of a MultiSend contract,
// or 0 when the address is unknown.
func (r *MetadataRepository) MultiSendVersion(address ethtypes.Address) int {
	m, ok := lo.Find(r.metadata.MultiSend, func(m MultiSendMetadata) bool {
		return m.Address.Equals(address)
	})
	if !ok {
		return 0
	}
	return m.Version
}

// MultiSendProxyFor builds a MultiSendProxy with the layout version
// registered for address.
func (r *MetadataRepository) MultiSendProxyFor(address ethtypes.Address) *MultiSendProxy {
	return NewMultiSendProxy(address, r.MultiSendVersion(address))
}
