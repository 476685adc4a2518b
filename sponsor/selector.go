package sponsor

import (
	"strings"

	"github.com/thirdfy/agentkit"
	"github.com/thirdfy/agentkit/custodial"
)

// didPrefix marks identity-document-style wallet ids. The wallet API's
// sponsorship endpoint wants raw wallet ids, so DID-shaped ids fall through
// to the address selector.
const didPrefix = "did:"

// ResolveSelector determines which identity a sponsorship call
// authenticates as: the embedded-wallet instance id when known, else a
// non-DID wallet id, else the address plus chain type.
func ResolveSelector(identity agentkit.WalletIdentity, chainType string) custodial.WalletSelector {
	if identity.EmbeddedWalletID != "" {
		return custodial.WalletSelector{EmbeddedWalletID: identity.EmbeddedWalletID}
	}

	if identity.WalletID != "" && !strings.HasPrefix(identity.WalletID, didPrefix) {
		return custodial.WalletSelector{WalletID: identity.WalletID}
	}

	return custodial.WalletSelector{
		Address:   identity.Address,
		ChainType: chainType,
	}
}
