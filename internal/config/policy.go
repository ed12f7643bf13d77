package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/neighborly/neighborly/internal/authz"
)

// PolicyFile is the on-disk form of a role-permission table:
//
//	roles:
//	  admin: [manage_users, view_users, ...]
//	  user: []
type PolicyFile struct {
	Roles map[string][]string `yaml:"roles"`
}

// LoadPolicy reads a policy file and builds an authz.Table from it. Every
// role must be listed, even with an empty permission list.
func LoadPolicy(path string) (*authz.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy builds an authz.Table from policy YAML. Unknown YAML keys are
// rejected so a misspelled section cannot silently fall back to defaults.
func ParsePolicy(data []byte) (*authz.Table, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var pf PolicyFile
	if err := dec.Decode(&pf); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}

	assign := make(map[authz.Role][]authz.Permission, len(pf.Roles))
	for role, perms := range pf.Roles {
		r := authz.Role(role)
		list := make([]authz.Permission, 0, len(perms))
		for _, p := range perms {
			list = append(list, authz.Permission(p))
		}
		assign[r] = list
	}

	t, err := authz.NewTable(assign)
	if err != nil {
		return nil, fmt.Errorf("policy: %w", err)
	}
	return t, nil
}

// MarshalPolicy renders t in policy file form, roles and permissions in
// enumeration order.
func MarshalPolicy(t *authz.Table) ([]byte, error) {
	root := &yaml.Node{Kind: yaml.MappingNode}
	for _, r := range authz.Roles() {
		seq := &yaml.Node{Kind: yaml.SequenceNode, Style: yaml.FlowStyle}
		for _, p := range t.Grants(r) {
			seq.Content = append(seq.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: string(p)})
		}
		root.Content = append(root.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: string(r)}, seq)
	}

	doc := &yaml.Node{Kind: yaml.MappingNode, Content: []*yaml.Node{
		{Kind: yaml.ScalarNode, Value: "roles"}, root,
	}}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("encode policy: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encode policy: %w", err)
	}
	return buf.Bytes(), nil
}
