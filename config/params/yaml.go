package params

import (
	"io/ioutil"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
)

// LoadConfigFile reads a YAML network-config file and overlays it onto
// the mainnet preset, the way a named testnet config is loaded: an
// operator only needs to spell out the constants that differ from
// mainnet, everything else keeps its mainnet value.
func LoadConfigFile(path string) (*BeaconChainConfig, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read config file")
	}

	cfg := mainnetConfig()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, errors.Wrap(err, "could not parse config file")
	}
	return cfg, nil
}
