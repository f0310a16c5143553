package layout

import "sort"

// Roles the deployment machinery recognizes. Composite roles (controller,
// servers, master) never survive parsing; they expand into these.
const (
	RoleShadow          = "shadow"
	RoleLoadBalancer    = "load_balancer"
	RoleLogin           = "login"
	RoleAppEngine       = "appengine"
	RoleDatabase        = "database"
	RoleDBMaster        = "db_master"
	RoleDBSlave         = "db_slave"
	RoleMemcache        = "memcache"
	RoleZooKeeper       = "zookeeper"
	RoleTaskQueue       = "taskqueue"
	RoleTaskQueueMaster = "taskqueue_master"
	RoleTaskQueueSlave  = "taskqueue_slave"
	RoleOpen            = "open"
)

// ValidRoles lists every role a parsed node may carry.
var ValidRoles = []string{
	RoleShadow,
	RoleLoadBalancer,
	RoleLogin,
	RoleAppEngine,
	RoleDatabase,
	RoleDBMaster,
	RoleDBSlave,
	RoleMemcache,
	RoleZooKeeper,
	RoleTaskQueue,
	RoleTaskQueueMaster,
	RoleTaskQueueSlave,
	RoleOpen,
}

// Node is one machine in a deployment: an address plus the roles it hosts.
type Node struct {
	Address string

	roles []string
}

// newNode creates a node with no roles yet.
func newNode(address string) *Node {
	return &Node{Address: address}
}

// AddRole adds a role to the node. Composite roles are expanded to the
// base roles they represent; duplicates are dropped.
func (n *Node) AddRole(role string) {
	switch role {
	case "controller":
		// A controller hosts everything except the app servers.
		n.AddRole(RoleShadow)
		n.AddRole(RoleLoadBalancer)
		n.AddRole(RoleLogin)
		n.AddRole(RoleDatabase)
		n.AddRole(RoleMemcache)
		n.AddRole(RoleZooKeeper)
		n.AddRole(RoleTaskQueue)
	case "servers":
		n.AddRole(RoleAppEngine)
		n.AddRole(RoleDatabase)
		n.AddRole(RoleMemcache)
		n.AddRole(RoleTaskQueue)
	case "master":
		n.AddRole(RoleShadow)
		n.AddRole(RoleLoadBalancer)
	case RoleLogin:
		n.addPlain(RoleLogin)
		n.AddRole(RoleLoadBalancer)
	case RoleDatabase:
		n.addPlain(RoleDatabase)
		// Database nodes still serve their query cache from memcache.
		n.AddRole(RoleMemcache)
	default:
		n.addPlain(role)
	}
}

func (n *Node) addPlain(role string) {
	if n.HasRole(role) {
		return
	}
	n.roles = append(n.roles, role)
}

// HasRole reports whether the node hosts the given role.
func (n *Node) HasRole(role string) bool {
	for _, r := range n.roles {
		if r == role {
			return true
		}
	}
	return false
}

// Roles returns the node's roles sorted for stable display.
func (n *Node) Roles() []string {
	out := make([]string, len(n.roles))
	copy(out, n.roles)
	sort.Strings(out)
	return out
}

// IsHead reports whether this node is the head (shadow) node of the
// deployment.
func (n *Node) IsHead() bool {
	return n.HasRole(RoleShadow)
}

// invalidRoles returns the roles on this node that nothing recognizes.
func (n *Node) invalidRoles() []string {
	var bad []string
	for _, r := range n.roles {
		valid := false
		for _, v := range ValidRoles {
			if r == v {
				valid = true
				break
			}
		}
		if !valid {
			bad = append(bad, r)
		}
	}
	return bad
}
