package trace

import (
	"io/fs"
	"os"
	"syscall"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// BuiltInWarning is returned by LoadFromFile when some entries were not
// binaries and have been set up as built-in functions.
const BuiltInWarning = "some binaries were not found so they were assumed to be built-in functions"

// LoadFromFile sets up the functions to trace described by the YAML file at
// path:
//
//	/usr/bin/app:
//	  func1:
//	    1: '%s'
//	    2: '%d'
//	  func2:
//	do_sys_open:
//	  2: '%s'
//
// Keys that cannot be opened as binaries are taken as built-in functions
// with their parameters, and a warning is returned.
func (s *Setup) LoadFromFile(path string) (string, error) {
	if path == "" {
		return "", ErrConfigPathEmpty
	}
	content, err := os.ReadFile(path)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return "", errors.Wrap(ErrConfigNotFound, path)
		case errors.Is(err, syscall.EISDIR):
			return "", errors.Wrap(ErrConfigIsDir, path)
		default:
			return "", errors.Wrapf(err, "failed to read configuration file %s", path)
		}
	}

	return s.Load(content)
}

// Load is LoadFromFile for an in-memory configuration.
func (s *Setup) Load(content []byte) (string, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return "", errors.Wrap(ErrConfigFormat, err.Error())
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return "", errors.Wrap(ErrConfigFormat, "top level must be a mapping")
	}
	root := doc.Content[0]

	var warning string
	for i := 0; i+1 < len(root.Content); i += 2 {
		app, body := root.Content[i].Value, root.Content[i+1]

		err := s.InitializeBinary(app)
		switch {
		case err == nil:
			if err := s.loadFunctions(app, body); err != nil {
				return "", err
			}
		case errors.Is(err, ErrBinaryNotFound):
			params, err := decodeParams(body)
			if err != nil {
				return "", err
			}
			s.InitializeBuiltIn(app)
			for index, format := range params {
				if err := s.AddParameter(BuiltIns, app, index, format); err != nil {
					return "", err
				}
			}
			s.logger.Debug().Str("function", app).Msg("assumed built-in function")
			warning = BuiltInWarning
		default:
			return "", err
		}
	}

	return warning, nil
}

func (s *Setup) loadFunctions(app string, body *yaml.Node) error {
	switch body.Kind {
	case yaml.ScalarNode:
		if body.Tag != "!!null" {
			return errors.Wrapf(ErrConfigFormat, "functions of %s must be a mapping or a list", app)
		}
	case yaml.SequenceNode:
		for _, fn := range body.Content {
			if fn.Kind != yaml.ScalarNode {
				return errors.Wrapf(ErrConfigFormat, "functions of %s must be names", app)
			}
			if err := s.SetupFunctionToTrace(app, fn.Value); err != nil {
				return err
			}
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(body.Content); i += 2 {
			fn := body.Content[i].Value
			if err := s.SetupFunctionToTrace(app, fn); err != nil {
				return err
			}
			params, err := decodeParams(body.Content[i+1])
			if err != nil {
				return err
			}
			for index, format := range params {
				if err := s.AddParameter(app, fn, index, format); err != nil {
					return err
				}
			}
		}
	default:
		return errors.Wrapf(ErrConfigFormat, "functions of %s must be a mapping or a list", app)
	}

	return nil
}

func decodeParams(node *yaml.Node) (map[int]string, error) {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, errors.Wrap(ErrConfigFormat, "parameters must map argument indexes to formats")
	}
	params := make(map[int]string)
	if err := node.Decode(&params); err != nil {
		return nil, errors.Wrap(ErrConfigFormat, err.Error())
	}

	return params, nil
}
