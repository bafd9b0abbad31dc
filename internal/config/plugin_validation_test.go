package config

import "testing"

func TestPluginValidatorContributesIssues(t *testing.T) {
	RegisterPluginValidator(func(cfg *Config) []string {
		return []string{"plugin says no"}
	})
	defer RegisterPluginValidator(nil)

	issues := pluginValidationIssues(&Config{})
	if len(issues) != 1 || issues[0] != "plugin says no" {
		t.Fatalf("unexpected issues: %v", issues)
	}
}

func TestPluginValidatorSkipsNilConfig(t *testing.T) {
	RegisterPluginValidator(func(cfg *Config) []string {
		t.Fatal("validator must not run for a nil config")
		return nil
	})
	defer RegisterPluginValidator(nil)

	if issues := pluginValidationIssues(nil); issues != nil {
		t.Fatalf("expected nil issues, got %v", issues)
	}
}

func TestPluginValidatorAbsentIsClean(t *testing.T) {
	RegisterPluginValidator(nil)
	if issues := pluginValidationIssues(&Config{}); issues != nil {
		t.Fatalf("no validator must mean no issues, got %v", issues)
	}
}

func TestPluginValidatorReplacement(t *testing.T) {
	RegisterPluginValidator(func(*Config) []string { return []string{"first"} })
	RegisterPluginValidator(func(*Config) []string { return []string{"second"} })
	defer RegisterPluginValidator(nil)

	issues := pluginValidationIssues(&Config{})
	if len(issues) != 1 || issues[0] != "second" {
		t.Fatalf("later registration must win: %v", issues)
	}
}
