package config

import (
	"reflect"
	"strings"

	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("field not found")

type Option func(options *options)

type options struct {
	withDefault  bool
	defaultValue interface{}
}

func getOptions(opts ...Option) *options {
	defaultOptions := &options{
		withDefault:  false,
		defaultValue: nil,
	}

	for _, opt := range opts {
		opt(defaultOptions)
	}

	return defaultOptions
}

func WithDefault(value interface{}) Option {
	return func(options *options) {
		options.withDefault = true
		options.defaultValue = value
	}
}

// GetInterface gets the given potentially nested field irrespective of its type.
// Dots in field descend into submaps.
func GetInterface(config map[string]interface{}, field string, opts ...Option) (interface{}, error) {
	options := getOptions(opts...)
	i := strings.Index(field, ".")
	if i == -1 {
		element, ok := config[field]
		if options.withDefault && !ok {
			return options.defaultValue, nil
		}
		if !ok {
			return nil, ErrNotFound
		}
		return element, nil
	}

	element, ok := config[field[:i]]
	if options.withDefault && !ok {
		return options.defaultValue, nil
	}
	if !ok {
		return nil, ErrNotFound
	}
	submap, ok := element.(map[string]interface{})
	if !ok {
		return nil, errors.Errorf("%v should be a map, got: %v", field[:i], reflect.TypeOf(element))
	}

	out, err := GetInterface(submap, field[i+1:], opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't get interface from %v", field[i+1:])
	}

	return out, nil
}

// GetString gets a string from the given field.
func GetString(config map[string]interface{}, field string, opts ...Option) (string, error) {
	options := getOptions(opts...)
	out, err := GetInterface(config, field)
	if err != nil {
		if options.withDefault && errors.Cause(err) == ErrNotFound {
			return options.defaultValue.(string), nil
		}
		return "", errors.Wrapf(err, "couldn't get %s", field)
	}

	outString, ok := out.(string)
	if !ok {
		return "", errors.Errorf("expected string, got %v", reflect.TypeOf(out))
	}

	return outString, nil
}

// GetInt gets an int from the given field.
func GetInt(config map[string]interface{}, field string, opts ...Option) (int, error) {
	options := getOptions(opts...)
	out, err := GetInterface(config, field)
	if err != nil {
		if options.withDefault && errors.Cause(err) == ErrNotFound {
			return options.defaultValue.(int), nil
		}
		return 0, errors.Wrapf(err, "couldn't get %s", field)
	}

	outInt, ok := out.(int)
	if !ok {
		return 0, errors.Errorf("expected int, got %v", reflect.TypeOf(out))
	}

	return outInt, nil
}

// GetBool gets a bool from the given field.
func GetBool(config map[string]interface{}, field string, opts ...Option) (bool, error) {
	options := getOptions(opts...)
	out, err := GetInterface(config, field)
	if err != nil {
		if options.withDefault && errors.Cause(err) == ErrNotFound {
			return options.defaultValue.(bool), nil
		}
		return false, errors.Wrapf(err, "couldn't get %s", field)
	}

	outBool, ok := out.(bool)
	if !ok {
		return false, errors.Errorf("expected bool, got %v", reflect.TypeOf(out))
	}

	return outBool, nil
}
