package validation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/solatis/ruledesk/internal/types"
)

// ValidateRule checks a whole rule entity: metadata, type option, rule tree
// and extra properties. Validation problems come back as FieldErrors
// ("rule.AND.0.value", "extraProperties.quality"); the error return is
// reserved for catalog failures.
func (c *Cache) ValidateRule(ctx context.Context, rule *types.Rule) (FieldErrors, error) {
	errs := FieldErrors{}

	name := strings.TrimSpace(rule.Name)
	switch {
	case name == "":
		errs.add("name", "name is required")
	case len(name) > types.MaxNameLength:
		errs.add("name", fmt.Sprintf("name must be at most %d characters", types.MaxNameLength))
	}
	if rule.Category == "" {
		errs.add("category", "category is required")
	}
	if rule.Destination == "" {
		errs.add("destination", "destination is required")
	}
	if rule.Rule == nil {
		errs.add("rule", "rule is required")
	}
	if rule.Category == "" || rule.Destination == "" {
		return errs, nil
	}

	compiled, err := c.Get(ctx, rule.Category, rule.Destination)
	switch {
	case errors.Is(err, types.ErrUnknownCategory):
		errs.add("category", fmt.Sprintf("unknown category %q", rule.Category))
		return errs, nil
	case errors.Is(err, types.ErrUnknownDestination):
		errs.add("destination", fmt.Sprintf("unknown destination %q", rule.Destination))
		return errs, nil
	case err != nil:
		return nil, err
	}

	if opts := compiled.Info.TypeOptions.Options; len(opts) > 0 {
		label := compiled.Info.TypeOptions.FieldName
		if label == "" {
			label = "type"
		}
		switch {
		case rule.Type == "":
			errs.add("type", label+" is required")
		case !containsString(opts, rule.Type):
			errs.add("type", fmt.Sprintf("%s must be one of %s", label, strings.Join(opts, ", ")))
		}
	}

	if rule.Rule != nil {
		errs.merge("rule", compiled.Tree.Validate(rule.Rule))
	}

	extraErrs, err := compiled.Extra.Validate(rule.ExtraProperties)
	if err != nil {
		return nil, err
	}
	errs.merge("extraProperties", extraErrs)

	return errs, nil
}

func containsString(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
