package core

import glog "github.com/goliatone/go-logger/glog"

var (
	_ IntegrationRegistry = (*Registry)(nil)
	_ MetricsRecorder     = NopMetricsRecorder{}
	_ DeliveryPolicy      = DryRunPolicy{}
	_ DeliveryPolicy      = DeliveryPolicyFunc(nil)
	_ DeliveryPolicy      = policyChain(nil)
	_ ConfigProvider      = (*CfgxConfigProvider)(nil)
	_ RawConfigLoader     = StaticConfigLoader{}
	_ OptionsResolver     = GoOptionsResolver{}

	_ Logger         = glog.Nop()
	_ LoggerProvider = glog.ProviderFromLogger(glog.Nop())
)
