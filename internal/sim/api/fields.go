package api

// Typed readers over Observer.Field. A missing entity, missing field or a value of
// the wrong dynamic type all read as ok=false (or an empty slice).

func Int(o Observer, id EntityID, name string) (int, bool) {
	v, ok := o.Field(id, name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case EntityID:
		return int(n), true
	default:
		return 0, false
	}
}

func Float(o Observer, id EntityID, name string) (float64, bool) {
	v, ok := o.Field(id, name)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func Bool(o Observer, id EntityID, name string) (bool, bool) {
	v, ok := o.Field(id, name)
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

func ID(o Observer, id EntityID, name string) (EntityID, bool) {
	v, ok := o.Field(id, name)
	if !ok {
		return NoEntity, false
	}
	switch n := v.(type) {
	case EntityID:
		if n == NoEntity {
			return NoEntity, false
		}
		return n, true
	case int:
		return EntityID(n), true
	default:
		return NoEntity, false
	}
}

func IDs(o Observer, id EntityID, name string) []EntityID {
	v, ok := o.Field(id, name)
	if !ok {
		return nil
	}
	ids, _ := v.([]EntityID)
	return ids
}

func Ints(o Observer, id EntityID, name string) []int {
	v, ok := o.Field(id, name)
	if !ok {
		return nil
	}
	ns, _ := v.([]int)
	return ns
}

// OtherEnd returns the endpoint of edge opposite from node.
func OtherEnd(o Observer, edge, node EntityID) (EntityID, bool) {
	ends := IDs(o, edge, FieldNodes)
	if len(ends) != 2 {
		return NoEntity, false
	}
	switch node {
	case ends[0]:
		return ends[1], true
	case ends[1]:
		return ends[0], true
	default:
		return NoEntity, false
	}
}
