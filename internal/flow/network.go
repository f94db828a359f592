package flow

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed networks.yaml
var networksYAML []byte

// defaultContract stands in for an unset Kaizen contract address.
const defaultContract = "0x01"

type Contracts struct {
	FlowToken        string `yaml:"flowToken" json:"flowToken"`
	FungibleToken    string `yaml:"fungibleToken" json:"fungibleToken"`
	NonFungibleToken string `yaml:"nonFungibleToken" json:"nonFungibleToken"`
	MetadataViews    string `yaml:"metadataViews" json:"metadataViews"`
	KaizenEvent      string `yaml:"kaizenEvent" json:"kaizenEvent"`
	KaizenEventNFT   string `yaml:"kaizenEventNFT" json:"kaizenEventNFT"`
}

type Network struct {
	Name            string    `yaml:"-" json:"network"`
	AccessNode      string    `yaml:"accessNode" json:"accessNode"`
	WalletDiscovery string    `yaml:"walletDiscovery" json:"walletDiscovery"`
	FlowScan        string    `yaml:"flowScan" json:"flowScan,omitempty"`
	Contracts       Contracts `yaml:"contracts" json:"contracts"`
}

// Overrides replaces registry values; empty fields keep the registry default.
type Overrides struct {
	AccessNode      string
	WalletDiscovery string
	KaizenEvent     string
	KaizenEventNFT  string
}

func loadNetworks() (map[string]Network, error) {
	var networks map[string]Network
	if err := yaml.Unmarshal(networksYAML, &networks); err != nil {
		return nil, fmt.Errorf("flow: parse networks.yaml: %w", err)
	}
	for name, n := range networks {
		n.Name = name
		networks[name] = n
	}
	return networks, nil
}

// NetworkNames lists the networks known to the registry, sorted.
func NetworkNames() []string {
	networks, err := loadNetworks()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(networks))
	for name := range networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LookupNetwork returns the named network with overrides applied.
func LookupNetwork(name string, o Overrides) (Network, error) {
	networks, err := loadNetworks()
	if err != nil {
		return Network{}, err
	}

	n, ok := networks[name]
	if !ok {
		return Network{}, fmt.Errorf("flow: unknown network %q", name)
	}

	if o.AccessNode != "" {
		n.AccessNode = o.AccessNode
	}
	if o.WalletDiscovery != "" {
		n.WalletDiscovery = o.WalletDiscovery
	}
	if o.KaizenEvent != "" {
		n.Contracts.KaizenEvent = o.KaizenEvent
	}
	if o.KaizenEventNFT != "" {
		n.Contracts.KaizenEventNFT = o.KaizenEventNFT
	}
	if n.Contracts.KaizenEvent == "" {
		n.Contracts.KaizenEvent = defaultContract
	}
	if n.Contracts.KaizenEventNFT == "" {
		n.Contracts.KaizenEventNFT = defaultContract
	}
	return n, nil
}
