package topology

// ThreePrimaries returns the canonical three-primary layout with one replica
// per primary: a owns 0-5460, b owns 5461-10922, c owns 10923-16383.
func ThreePrimaries() []Node {
	return []Node{
		{ID: "a", Host: "127.0.0.1", Port: 7000, Role: RolePrimary, Slots: []SlotRange{Range(0, 5460)}},
		{ID: "b", Host: "127.0.0.1", Port: 7001, Role: RolePrimary, Slots: []SlotRange{Range(5461, 10922)}},
		{ID: "c", Host: "127.0.0.1", Port: 7002, Role: RolePrimary, Slots: []SlotRange{Range(10923, 16383)}},
		{ID: "a1", Host: "127.0.0.1", Port: 7003, Role: RoleReplica, ReplicaOf: "a"},
		{ID: "b1", Host: "127.0.0.1", Port: 7004, Role: RoleReplica, ReplicaOf: "b"},
		{ID: "c1", Host: "127.0.0.1", Port: 7005, Role: RoleReplica, ReplicaOf: "c"},
	}
}

// MustNew is New that panics on error. Meant for tests and examples.
func MustNew(nodes ...Node) *Topology {
	t, err := New(nodes...)
	if err != nil {
		panic(err)
	}
	return t
}
