package oidc

// DefaultGroupsClaim is the claim inspected for group membership when no
// claim name is configured.
const DefaultGroupsClaim = "groups"

// CheckGroupClaim enforces the optional group-membership gate. An empty
// requiredGroup disables the gate. The claim value may be a list of
// strings or a single scalar string; any other shape, or an absent
// claim, denies access.
func CheckGroupClaim(claims Claims, claimName, requiredGroup string) error {
	if requiredGroup == "" {
		return nil
	}
	if claimName == "" {
		claimName = DefaultGroupsClaim
	}

	v, ok := claims[claimName]
	if !ok {
		return groupGateErrf("claim %q is not present in the ID token", claimName)
	}

	switch groups := v.(type) {
	case []interface{}:
		for _, g := range groups {
			if s, ok := g.(string); ok && s == requiredGroup {
				return nil
			}
		}
	case []string:
		for _, g := range groups {
			if g == requiredGroup {
				return nil
			}
		}
	case string:
		if groups == requiredGroup {
			return nil
		}
	}

	return groupGateErrf("account is not a member of group %q", requiredGroup)
}
