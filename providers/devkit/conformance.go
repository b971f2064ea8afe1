package devkit

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-form-integrations/core"
	"github.com/goliatone/go-form-integrations/transport"
)

// ValidateTransportAdapterConformance issues request and checks that a
// non-2xx reply comes back as a response rather than an error.
func ValidateTransportAdapterConformance(
	ctx context.Context,
	adapter transport.Adapter,
	request transport.Request,
) error {
	if adapter == nil {
		return fmt.Errorf("devkit: transport adapter is required")
	}
	res, err := adapter.Do(ctx, request)
	if err != nil {
		return err
	}
	if res.StatusCode == 0 {
		return fmt.Errorf("devkit: transport adapter returned no status code")
	}
	return nil
}

func ValidateIntegrationConformance(integration core.Integration) error {
	if integration == nil {
		return fmt.Errorf("devkit: integration is required")
	}
	if strings.TrimSpace(integration.Handle()) == "" {
		return fmt.Errorf("devkit: integration handle is required")
	}
	if strings.TrimSpace(integration.ProviderID()) == "" {
		return fmt.Errorf("devkit: integration provider id is required")
	}
	switch integration.Kind() {
	case core.IntegrationKindCRM, core.IntegrationKindEmailMarketing, core.IntegrationKindCaptcha:
	default:
		return fmt.Errorf("devkit: integration %q has unknown kind %q", integration.Handle(), integration.Kind())
	}
	return nil
}

// ValidateDeliveryConformance sends req and checks the result envelope: a
// known status, and an error with a classified kind on failure only.
func ValidateDeliveryConformance(
	ctx context.Context,
	integration core.FormIntegration,
	req core.DeliveryRequest,
) (core.DeliveryResult, error) {
	if err := ValidateIntegrationConformance(integration); err != nil {
		return core.DeliveryResult{}, err
	}
	result := integration.SendPayload(ctx, req)
	switch result.Status {
	case core.DeliveryStatusDelivered, core.DeliveryStatusSuppressed:
		if result.Err != nil {
			return result, fmt.Errorf("devkit: %s result carries error %v", result.Status, result.Err)
		}
	case core.DeliveryStatusFailed:
		if result.Err == nil {
			return result, fmt.Errorf("devkit: failed result carries no error")
		}
		if result.ErrorKind == core.ErrorKindNone {
			return result, fmt.Errorf("devkit: failed result has no error kind")
		}
	default:
		return result, fmt.Errorf("devkit: unknown delivery status %q", result.Status)
	}
	return result, nil
}
