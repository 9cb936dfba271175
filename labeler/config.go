package labeler

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/iancoleman/strcase"
	"go.uber.org/config"
)

// DefaultDaysToLookBack bounds the per-run workload: only donations received
// within this trailing window are considered.
const DefaultDaysToLookBack = 30

type Config struct {
	PersonalAccessToken PersonalAccessToken
	Login               LoginSettings
	// ApplyLabelsToDonations maps a People campus name to the Giving label
	// slug applied to donations from that campus. Duplicate campus names are
	// allowed; the last entry wins.
	ApplyLabelsToDonations []CampusLabelMapping
	DaysToLookBack         int
}

// PersonalAccessToken holds the app id / secret pair used as basic auth
// against the documented REST API.
type PersonalAccessToken struct {
	AppID  string `yaml:"app_id"`
	Secret string
}

// LoginSettings holds the web session credentials. Either Email, Password
// and UserID are set (interactive form login) or Cookie is set (reuse of an
// existing browser session). The two shapes are mutually exclusive.
type LoginSettings struct {
	Email    string
	Password string
	UserID   string `yaml:"user_id"`
	Cookie   string
}

type CampusLabelMapping struct {
	PeopleCampus string `yaml:"people_campus"`
	GivingLabel  string `yaml:"giving_label"`
}

// UsesCookie reports whether the operator supplied a static session cookie
// instead of interactive login credentials.
func (l LoginSettings) UsesCookie() bool {
	return l.Cookie != ""
}

// LabelMappings builds the campus name to label slug lookup, last entry wins.
func (c Config) LabelMappings() map[string]string {
	result := make(map[string]string, len(c.ApplyLabelsToDonations))
	for _, m := range c.ApplyLabelsToDonations {
		result[m.PeopleCampus] = m.GivingLabel
	}
	return result
}

type ConfigUnmarshaler interface {
	Unmarshal(lookup func(string) (string, bool), sources ...io.Reader) (Config, error)
}

type YAMLConfigUnmarshaler struct{}

func (u YAMLConfigUnmarshaler) Unmarshal(lookup func(string) (string, bool), sources ...io.Reader) (Config, error) {
	var result Config
	var options []config.YAMLOption
	for _, s := range sources {
		options = append(options, config.Source(s))
	}
	options = append(options, config.Expand(lookup))
	yaml, err := config.NewYAML(options...)
	if err != nil {
		return result, fmt.Errorf("failed to read yaml config %w", err)
	}
	readError := func(key string, cause error) error {
		return fmt.Errorf("failed to read '%s' from yaml config %w", key, cause)
	}
	key := "personal_access_token"
	err = yaml.Get(key).Populate(&result.PersonalAccessToken)
	if err != nil {
		return result, readError(key, err)
	}
	key = "login"
	err = yaml.Get(key).Populate(&result.Login)
	if err != nil {
		return result, readError(key, err)
	}
	key = "apply_labels_to_donations"
	err = yaml.Get(key).Populate(&result.ApplyLabelsToDonations)
	if err != nil {
		return result, readError(key, err)
	}
	key = "days_to_look_back"
	if yaml.Get(key).HasValue() {
		err = yaml.Get(key).Populate(&result.DaysToLookBack)
		if err != nil {
			return result, readError(key, err)
		}
	}
	if result.DaysToLookBack == 0 {
		result.DaysToLookBack = DefaultDaysToLookBack
	}
	return result, result.Validate()
}

// LoadConfigFile loads and validates the YAML config at path, expanding
// ${VAR} references from the environment.
func LoadConfigFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, err
	}
	defer f.Close()
	return YAMLConfigUnmarshaler{}.Unmarshal(os.LookupEnv, f)
}

// Validate checks the config for the mistakes that would otherwise surface
// mid-run: missing API credentials, an ambiguous or empty login section and
// malformed label slugs.
func (c Config) Validate() error {
	if c.PersonalAccessToken.AppID == "" || c.PersonalAccessToken.Secret == "" {
		return errors.New("personal_access_token requires both app_id and secret")
	}
	hasLogin := c.Login.Email != "" || c.Login.Password != "" || c.Login.UserID != ""
	if c.Login.UsesCookie() {
		if hasLogin {
			return errors.New("login must set either cookie or email/password/user_id, not both")
		}
	} else {
		if c.Login.Email == "" || c.Login.Password == "" || c.Login.UserID == "" {
			return errors.New("login requires email, password and user_id (or a cookie)")
		}
	}
	if len(c.ApplyLabelsToDonations) == 0 {
		return errors.New("apply_labels_to_donations must contain at least one mapping")
	}
	for _, m := range c.ApplyLabelsToDonations {
		if m.PeopleCampus == "" || m.GivingLabel == "" {
			return errors.New("apply_labels_to_donations entries require both people_campus and giving_label")
		}
		if strcase.ToKebab(m.GivingLabel) != m.GivingLabel {
			return fmt.Errorf("giving_label %q is not a valid slug (expected %q)", m.GivingLabel, strcase.ToKebab(m.GivingLabel))
		}
	}
	return nil
}
