package command

func single(name string, readOnly bool) Spec {
	return Spec{Name: name, Class: SingleKey, Merge: MergeNone, ReadOnly: readOnly}
}

func atomic(name string) Spec {
	return Spec{Name: name, Class: MultiKeyAtomic, Merge: MergeHardFail}
}

// atomicPairs is an atomic command taking key value pairs.
func atomicPairs(name string) Spec {
	s := atomic(name)
	s.ValuesPerKey = 1
	return s
}

func split(name string, merge Merge, valuesPerKey int, readOnly bool) Spec {
	return Spec{Name: name, Class: MultiKeySplittable, Merge: merge, ValuesPerKey: valuesPerKey, ReadOnly: readOnly}
}

func wide(name string, merge Merge, readOnly bool) Spec {
	return Spec{Name: name, Class: ClusterWide, Merge: merge, ReadOnly: readOnly}
}

func local(name string) Spec {
	return Spec{Name: name, Class: NodeLocal, Merge: MergeNone}
}

var defaultSpecs = []Spec{
	// strings
	single("GET", true),
	single("SET", false),
	single("SETNX", false),
	single("GETSET", false),
	single("GETDEL", false),
	single("APPEND", false),
	single("STRLEN", true),
	single("INCR", false),
	single("INCRBY", false),
	single("DECR", false),
	single("DECRBY", false),

	// keys
	single("EXPIRE", false),
	single("PEXPIRE", false),
	single("PERSIST", false),
	single("TTL", true),
	single("PTTL", true),
	single("TYPE", true),

	// hashes, lists, sets, sorted sets
	single("HGET", true),
	single("HSET", false),
	single("HDEL", false),
	single("HGETALL", true),
	single("HLEN", true),
	single("LPUSH", false),
	single("RPUSH", false),
	single("LPOP", false),
	single("RPOP", false),
	single("LRANGE", true),
	single("LLEN", true),
	single("SADD", false),
	single("SREM", false),
	single("SMEMBERS", true),
	single("SISMEMBER", true),
	single("SCARD", true),
	single("ZADD", false),
	single("ZREM", false),
	single("ZRANGE", true),
	single("ZSCORE", true),
	single("ZCARD", true),
	single("PFADD", false),

	// splittable multi-key
	split("MGET", MergeOrdered, 0, true),
	split("MSET", MergeAllEqual, 1, false),
	split("DEL", MergeSum, 0, false),
	split("UNLINK", MergeSum, 0, false),
	split("EXISTS", MergeSum, 0, true),
	split("TOUCH", MergeSum, 0, false),

	// atomic multi-key: partial results have no meaning
	atomicPairs("MSETNX"),
	atomic("PFCOUNT"),
	atomic("PFMERGE"),
	atomic("RENAME"),
	atomic("RENAMENX"),
	atomic("SMOVE"),
	atomic("SINTER"),
	atomic("SUNION"),
	atomic("SDIFF"),
	atomic("SINTERSTORE"),
	atomic("SUNIONSTORE"),
	atomic("SDIFFSTORE"),
	atomic("RPOPLPUSH"),
	atomic("LMOVE"),

	// cluster-wide
	wide("KEYS", MergeUnion, true),
	wide("DBSIZE", MergeSum, true),
	wide("FLUSHALL", MergeAllEqual, false),
	wide("FLUSHDB", MergeAllEqual, false),
	wide("PING", MergeAllEqual, true),

	// administrative, always addressed to one node
	local("CLUSTER"),
	local("INFO"),
	local("CONFIG"),
}

// Default returns a new table with the built-in classification.
func Default() *Table {
	t, err := NewTable(defaultSpecs...)
	if err != nil {
		panic(err)
	}
	return t
}
