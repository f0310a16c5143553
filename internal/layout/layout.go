// Package layout parses and validates the role→address mapping that
// describes an AppScale deployment.
//
// Layouts come in two formats. The simple format names a controller and
// its servers and we place every service for the user. The advanced
// format lets the user pin services (appengine, database, zookeeper...)
// to specific machines, and we verify the placement actually makes
// sense. Either way the result is a list of nodes with unique addresses;
// listing the same machine under several advanced roles stacks those
// roles onto one node.
package layout

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/altoplano/appscale-tools/internal/errors"
	"github.com/altoplano/appscale-tools/internal/util"
	"gopkg.in/yaml.v3"
)

// Keys accepted in the simple format.
var simpleKeys = []string{"controller", "servers"}

// Keys accepted in the advanced format.
var advancedKeys = []string{
	"master", "database", "appengine", "open",
	"login", "zookeeper", "memcache", "taskqueue",
}

// Machines in virtualized deployments are identified by IPv4 address.
var ipPattern = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+$`)

// Options tunes layout validation.
type Options struct {
	// Replication is the database replication factor. Zero means pick a
	// default from the database node count.
	Replication int
}

// Layout is a validated deployment layout.
type Layout struct {
	nodes       []*Node
	replication int
}

// ParseFile reads a YAML layout file (an ips.yaml) and parses it.
func ParseFile(path string, opts Options) (*Layout, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrLayout,
			"Couldn't read the ips file at "+path,
			"Check that the file exists and is readable.")
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrLayout,
			path+" isn't valid YAML",
			"Fix the syntax error and try again.")
	}

	return Parse(raw, opts)
}

// Parse validates a raw role→address mapping and builds the Layout.
func Parse(raw map[string]interface{}, opts Options) (*Layout, error) {
	if len(raw) == 0 {
		return nil, errors.New(errors.ErrLayout,
			"A node layout is required for virtualized clusters",
			"Add an ips section to your AppScalefile or pass --ips <file>.")
	}

	simple, advanced, err := classifyKeys(raw)
	if err != nil {
		return nil, err
	}

	entries, err := flatten(raw)
	if err != nil {
		return nil, err
	}

	if simple && !advanced {
		return parseSimple(entries, opts)
	}
	return parseAdvanced(entries, opts)
}

// entry is one role with its flattened address list, in key-sorted order.
type entry struct {
	role  string
	addrs []string
}

// classifyKeys determines which format the layout uses.
func classifyKeys(raw map[string]interface{}) (simple, advanced bool, err error) {
	simple, advanced = true, true

	for key := range raw {
		inSimple := contains(simpleKeys, key)
		inAdvanced := contains(advancedKeys, key)

		if !inSimple && !inAdvanced {
			all := append(append([]string{}, simpleKeys...), advancedKeys...)
			suggestion := "Supported roles: " + strings.Join(all, ", ")
			if similar := util.SuggestSimilar(key, all, 2); len(similar) > 0 {
				suggestion = fmt.Sprintf("Did you mean '%s'?", similar[0])
			}
			return false, false, errors.New(errors.ErrLayout,
				fmt.Sprintf("'%s' isn't a supported role", key),
				suggestion)
		}

		simple = simple && inSimple
		advanced = advanced && inAdvanced
	}

	if !simple && !advanced {
		return false, false, errors.New(errors.ErrLayout,
			"Layout mixes simple and advanced roles",
			"Use controller/servers or the advanced roles, not both.")
	}
	return simple, advanced, nil
}

// flatten normalizes each role's value to a list of addresses.
// Roles are processed in sorted order so parsing is deterministic.
func flatten(raw map[string]interface{}) ([]entry, error) {
	keys := make([]string, 0, len(raw))
	for key := range raw {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var entries []entry
	for _, key := range keys {
		addrs, err := addressList(key, raw[key])
		if err != nil {
			return nil, err
		}
		if len(addrs) == 0 {
			continue
		}
		entries = append(entries, entry{role: key, addrs: addrs})
	}
	return entries, nil
}

// addressList coerces a role's value into a slice of address strings.
func addressList(role string, value interface{}) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		return []string{strings.TrimSpace(v)}, nil
	case []interface{}:
		var addrs []string
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, badAddressValue(role)
			}
			if strings.TrimSpace(s) == "" {
				continue
			}
			addrs = append(addrs, strings.TrimSpace(s))
		}
		return addrs, nil
	default:
		return nil, badAddressValue(role)
	}
}

func badAddressValue(role string) error {
	return errors.New(errors.ErrLayout,
		fmt.Sprintf("The value for '%s' must be an IP address or a list of them", role),
		"Like: controller: 192.168.1.10, or servers: [192.168.1.11, 192.168.1.12]")
}

// parseSimple builds a layout from controller/servers entries.
func parseSimple(entries []entry, opts Options) (*Layout, error) {
	// The same machine may not appear twice in the simple format.
	var all []string
	for _, e := range entries {
		all = append(all, e.addrs...)
	}
	unique := make(map[string]bool, len(all))
	for _, addr := range all {
		if unique[addr] {
			return nil, errors.New(errors.ErrLayout,
				"Cannot specify the same IP address more than once.",
				"Use the advanced format to stack several roles on one machine.")
		}
		unique[addr] = true
	}

	var nodes []*Node
	for _, e := range entries {
		for _, addr := range e.addrs {
			if err := validAddress(addr); err != nil {
				return nil, err
			}
			node := newNode(addr)
			node.AddRole(e.role)

			// The controller always holds the database and taskqueue
			// master roles; everything else is a slave.
			isMaster := node.HasRole(RoleShadow)
			addMasterSlave(node, RoleDBMaster, RoleDBSlave, isMaster)
			addMasterSlave(node, RoleTaskQueueMaster, RoleTaskQueueSlave, isMaster)

			nodes = append(nodes, node)
		}
	}

	// A one-machine deployment also serves the apps itself.
	if len(nodes) == 1 {
		nodes[0].AddRole(RoleAppEngine)
		nodes[0].AddRole(RoleMemcache)
	}

	switch countRole(nodes, RoleShadow) {
	case 0:
		return nil, errors.New(errors.ErrLayout,
			"No controller was specified",
			"Add a controller entry with the head node's IP address.")
	case 1:
		// expected
	default:
		return nil, errors.New(errors.ErrLayout,
			"Only one controller is allowed",
			"List the extra machines under servers instead.")
	}

	return finishLayout(nodes, opts)
}

// parseAdvanced builds a layout from explicit role placements.
func parseAdvanced(entries []entry, opts Options) (*Layout, error) {
	byAddr := make(map[string]*Node)
	var nodes []*Node

	node := func(addr string) *Node {
		if n, ok := byAddr[addr]; ok {
			return n
		}
		n := newNode(addr)
		byAddr[addr] = n
		nodes = append(nodes, n)
		return n
	}

	for _, e := range entries {
		for i, addr := range e.addrs {
			if err := validAddress(addr); err != nil {
				return nil, err
			}
			n := node(addr)

			switch e.role {
			case RoleDatabase:
				// The first database machine listed is the master. A
				// machine listed twice keeps its first assignment.
				n.AddRole(RoleDatabase)
				if i == 0 {
					n.AddRole(RoleDBMaster)
				} else if !n.HasRole(RoleDBMaster) {
					n.AddRole(RoleDBSlave)
				}
			case RoleTaskQueue:
				n.AddRole(RoleTaskQueue)
				if i == 0 {
					n.AddRole(RoleTaskQueueMaster)
				} else if !n.HasRole(RoleTaskQueueMaster) {
					n.AddRole(RoleTaskQueueSlave)
				}
			default:
				n.AddRole(e.role)
			}
		}
	}

	var master *Node
	switch countRole(nodes, RoleShadow) {
	case 0:
		return nil, errors.New(errors.ErrLayout,
			"No master was specified",
			"Add a master entry with the head node's IP address.")
	case 1:
		for _, n := range nodes {
			if n.HasRole(RoleShadow) {
				master = n
			}
		}
	default:
		return nil, errors.New(errors.ErrLayout,
			"Only one master is allowed",
			"Pick one machine to be the master.")
	}

	// The master fills in for any service the user didn't place.
	if countRole(nodes, RoleLogin) == 0 {
		master.AddRole(RoleLogin)
	}

	if countRole(nodes, RoleAppEngine) < 1 {
		return nil, errors.New(errors.ErrLayout,
			"Need to specify at least one appengine node",
			"Add an appengine entry with at least one IP address.")
	}

	if countRole(nodes, RoleMemcache) == 0 {
		for _, n := range nodes {
			if n.HasRole(RoleAppEngine) {
				n.AddRole(RoleMemcache)
			}
		}
	}

	if countRole(nodes, RoleZooKeeper) == 0 {
		master.AddRole(RoleZooKeeper)
	}

	if countRole(nodes, RoleTaskQueue) == 0 {
		master.AddRole(RoleTaskQueue)
		master.AddRole(RoleTaskQueueMaster)
	}

	// App servers dispatch tasks, so they all need a taskqueue member.
	for _, n := range nodes {
		if n.HasRole(RoleAppEngine) && !n.HasRole(RoleTaskQueue) {
			n.AddRole(RoleTaskQueue)
			n.AddRole(RoleTaskQueueSlave)
		}
	}

	return finishLayout(nodes, opts)
}

// finishLayout runs the cross-node checks and orders the result.
func finishLayout(nodes []*Node, opts Options) (*Layout, error) {
	for _, n := range nodes {
		if bad := n.invalidRoles(); len(bad) > 0 {
			return nil, errors.New(errors.ErrLayout,
				fmt.Sprintf("Invalid role: %s", strings.Join(bad, ", ")),
				"Supported roles: "+strings.Join(ValidRoles, ", "))
		}
	}

	replication, err := validateReplication(nodes, opts)
	if err != nil {
		return nil, err
	}

	return &Layout{nodes: headFirst(nodes), replication: replication}, nil
}

// validateReplication checks the database replication factor, defaulting
// it from the database node count when unset.
func validateReplication(nodes []*Node, opts Options) (int, error) {
	dbCount := countRole(nodes, RoleDatabase)
	if dbCount == 0 {
		return 0, errors.New(errors.ErrLayout,
			"At least one database node must be provided.",
			"Add a database entry, or put the role on the master.")
	}

	replication := opts.Replication
	if replication < 0 {
		return 0, errors.New(errors.ErrLayout,
			"Replication factor can't be negative",
			"Use a small positive number, like 1 or 3.")
	}
	if replication == 0 {
		// With many database nodes full replication gets expensive, so
		// cap the default at three copies.
		replication = dbCount
		if dbCount > 3 {
			replication = 3
		}
	}

	if replication > dbCount {
		return 0, errors.New(errors.ErrLayout,
			"Replication factor cannot exceed # of databases",
			fmt.Sprintf("You have %d database %s, so replication can be at most %d.",
				dbCount, util.Pluralize(dbCount, "node", "nodes"), dbCount))
	}

	return replication, nil
}

// headFirst orders nodes with the head node first, keeping the build
// order for the rest.
func headFirst(nodes []*Node) []*Node {
	ordered := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if n.IsHead() {
			ordered = append(ordered, n)
		}
	}
	for _, n := range nodes {
		if !n.IsHead() {
			ordered = append(ordered, n)
		}
	}
	return ordered
}

func validAddress(addr string) error {
	if !ipPattern.MatchString(addr) {
		return errors.New(errors.ErrLayout,
			fmt.Sprintf("%s must be an IP address", addr),
			"Virtualized deployments identify machines by IPv4 address.")
	}
	return nil
}

func addMasterSlave(n *Node, masterRole, slaveRole string, isMaster bool) {
	if isMaster {
		n.AddRole(masterRole)
	} else {
		n.AddRole(slaveRole)
	}
}

func countRole(nodes []*Node, role string) int {
	count := 0
	for _, n := range nodes {
		if n.HasRole(role) {
			count++
		}
	}
	return count
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

// Nodes returns the deployment's nodes, head node first.
func (l *Layout) Nodes() []*Node {
	out := make([]*Node, len(l.nodes))
	copy(out, l.nodes)
	return out
}

// Addresses returns every node address, head node first. Addresses are
// unique: a machine carrying several roles appears once.
func (l *Layout) Addresses() []string {
	addrs := make([]string, len(l.nodes))
	for i, n := range l.nodes {
		addrs[i] = n.Address
	}
	return addrs
}

// HeadNode returns the deployment's head (shadow) node.
func (l *Layout) HeadNode() *Node {
	for _, n := range l.nodes {
		if n.IsHead() {
			return n
		}
	}
	return nil
}

// OtherNodes returns every node except the head node.
func (l *Layout) OtherNodes() []*Node {
	var others []*Node
	for _, n := range l.nodes {
		if !n.IsHead() {
			others = append(others, n)
		}
	}
	return others
}

// DatabaseMaster returns the node carrying the db_master role.
func (l *Layout) DatabaseMaster() *Node {
	for _, n := range l.nodes {
		if n.HasRole(RoleDBMaster) {
			return n
		}
	}
	return nil
}

// Replication returns the validated database replication factor.
func (l *Layout) Replication() int {
	return l.replication
}

// Len returns the number of nodes in the layout.
func (l *Layout) Len() int {
	return len(l.nodes)
}
