package core

import "context"

// DryRunPolicy refuses every write. Sends under it end as suppressed.
type DryRunPolicy struct{}

func (DryRunPolicy) Allow(context.Context, DeliveryStep) (bool, error) {
	return false, nil
}

type policyChain []DeliveryPolicy

func (c policyChain) Allow(ctx context.Context, step DeliveryStep) (bool, error) {
	for _, policy := range c {
		if policy == nil {
			continue
		}
		allowed, err := policy.Allow(ctx, step)
		if err != nil || !allowed {
			return false, err
		}
	}
	return true, nil
}

// ChainPolicies combines policies so that the first refusal or error wins.
// It returns nil when no policy is set.
func ChainPolicies(policies ...DeliveryPolicy) DeliveryPolicy {
	chain := make(policyChain, 0, len(policies))
	for _, policy := range policies {
		if policy == nil {
			continue
		}
		if nested, ok := policy.(policyChain); ok {
			chain = append(chain, nested...)
			continue
		}
		chain = append(chain, policy)
	}
	switch len(chain) {
	case 0:
		return nil
	case 1:
		return chain[0]
	default:
		return chain
	}
}

// AllowStep evaluates policy for step. A nil policy allows everything.
func AllowStep(ctx context.Context, policy DeliveryPolicy, step DeliveryStep) (bool, error) {
	if policy == nil {
		return true, nil
	}
	return policy.Allow(ctx, step)
}
