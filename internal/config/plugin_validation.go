package config

// PluginValidator lets an external package (a plugin host, a deployment
// wrapper) contribute validation issues to Config.Validate without this
// package importing it. Issues are plain strings in the same style the
// built-in validation produces.
type PluginValidator func(*Config) []string

var pluginValidator PluginValidator

// RegisterPluginValidator installs fn as the plugin validator. At most
// one is active; registering again replaces the previous one, and nil
// unregisters.
func RegisterPluginValidator(fn PluginValidator) {
	pluginValidator = fn
}

func pluginValidationIssues(cfg *Config) []string {
	if pluginValidator == nil || cfg == nil {
		return nil
	}
	return pluginValidator(cfg)
}
