package candidate

import (
	"fmt"
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// Fields is the typed form of the field map returned by the extraction model.
type Fields struct {
	Name           string           `mapstructure:"name"`
	Email          string           `mapstructure:"email"`
	Phone          string           `mapstructure:"phone"`
	Location       string           `mapstructure:"location"`
	LinkedIn       string           `mapstructure:"linkedin"`
	GitHub         string           `mapstructure:"github"`
	Designation    string           `mapstructure:"designation"`
	Education      []Education      `mapstructure:"education"`
	WorkExperience []WorkExperience `mapstructure:"work_experience"`
	Skills         []string         `mapstructure:"skills"`
	Certifications []Certification  `mapstructure:"certifications"`
	Projects       []Project        `mapstructure:"projects"`
	Languages      []string         `mapstructure:"languages"`
}

var certificationType = reflect.TypeOf(Certification{})

// Decode converts an untyped field map into Fields. Decoding is weakly typed
// (numbers become strings, a lone value becomes a one-element list) and keeps
// going past fields it cannot convert; those are left zero and reported in
// the returned error, while the partially filled Fields is still usable.
func Decode(raw map[string]any) (Fields, error) {
	var fields Fields
	if len(raw) == 0 {
		return fields, nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       certificationHook,
		WeaklyTypedInput: true,
		Result:           &fields,
	})
	if err != nil {
		return Fields{}, fmt.Errorf("build field decoder: %w", err)
	}

	if err := decoder.Decode(raw); err != nil {
		return fields, fmt.Errorf("decode extracted fields: %w", err)
	}

	return fields, nil
}

func certificationHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != certificationType || from.Kind() != reflect.String {
		return data, nil
	}
	return Certification{Name: reflect.ValueOf(data).String()}, nil
}
