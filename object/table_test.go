package object

import "testing"

func TestTableSetGet(t *testing.T) {
	table := NewTable()

	cases := []struct {
		key Object
		val Object
	}{
		{&String{Value: "name"}, &String{Value: "monke"}},
		{&Integer{Value: 1}, &String{Value: "one"}},
		{&Boolean{Value: true}, &Integer{Value: 42}},
	}
	for _, c := range cases {
		if _, err := table.Set(c.key, c.val); err != nil {
			t.Fatalf("unexpected error setting %v: %v", c.key, err)
		}
	}

	for _, c := range cases {
		got, err := table.Get(c.key)
		if err != nil {
			t.Fatalf("unexpected error getting %v: %v", c.key, err)
		}
		if !Equal(got, c.val) {
			t.Errorf("key %v: got=%v want=%v", c.key.Inspect(), got.Inspect(), c.val.Inspect())
		}
	}

	if table.Len() != len(cases) {
		t.Errorf("expected length %d, got %d", len(cases), table.Len())
	}
}

func TestTableGetMissingKeyReturnsNull(t *testing.T) {
	table := NewTable()
	got, err := table.Get(&String{Value: "absent"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := got.(*Null); !ok {
		t.Errorf("expected Null for missing key, got %T", got)
	}
}

func TestTableSetOverwritesAndReturnsPrevious(t *testing.T) {
	table := NewTable()
	key := &String{Value: "count"}
	table.Set(key, &Integer{Value: 1})

	old, err := table.Set(key, &Integer{Value: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if oldInt, ok := old.(*Integer); !ok || oldInt.Value != 1 {
		t.Errorf("expected previous value 1, got %v", old.Inspect())
	}
	if table.Len() != 1 {
		t.Errorf("overwriting an existing key must not change length, got %d", table.Len())
	}

	got, _ := table.Get(key)
	if gotInt, ok := got.(*Integer); !ok || gotInt.Value != 2 {
		t.Errorf("expected updated value 2, got %v", got.Inspect())
	}
}

func TestTableRemove(t *testing.T) {
	table := NewTable()
	key := &String{Value: "x"}
	table.Set(key, &Integer{Value: 10})

	old, err := table.Remove(key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if oldInt, ok := old.(*Integer); !ok || oldInt.Value != 10 {
		t.Errorf("expected removed value 10, got %v", old.Inspect())
	}
	if table.Len() != 0 {
		t.Errorf("expected length 0 after remove, got %d", table.Len())
	}

	got, _ := table.Get(key)
	if _, ok := got.(*Null); !ok {
		t.Errorf("expected Null after remove, got %T", got)
	}
}

func TestTableUnusableAsHashKey(t *testing.T) {
	table := NewTable()
	_, err := table.Set(&Array{}, &Integer{Value: 1})
	if err == nil {
		t.Fatal("expected an error using an array as a hash key")
	}
}

func TestTableGrowsAndKeepsAllEntries(t *testing.T) {
	table := NewTable()
	const n = 100
	for i := 0; i < n; i++ {
		table.Set(&Integer{Value: int64(i)}, &Integer{Value: int64(i * 2)})
	}
	if table.Len() != n {
		t.Fatalf("expected length %d, got %d", n, table.Len())
	}
	for i := 0; i < n; i++ {
		got, err := table.Get(&Integer{Value: int64(i)})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gotInt, ok := got.(*Integer); !ok || gotInt.Value != int64(i*2) {
			t.Errorf("key %d: got=%v want=%d", i, got.Inspect(), i*2)
		}
	}
}

func TestTableForEachVisitsEveryEntry(t *testing.T) {
	table := NewTable()
	want := map[string]int64{"a": 1, "b": 2, "c": 3}
	for k, v := range want {
		table.Set(&String{Value: k}, &Integer{Value: v})
	}

	seen := map[string]int64{}
	table.ForEach(func(k, v Object) {
		seen[k.(*String).Value] = v.(*Integer).Value
	})

	if len(seen) != len(want) {
		t.Fatalf("expected %d entries visited, got %d", len(want), len(seen))
	}
	for k, v := range want {
		if seen[k] != v {
			t.Errorf("key %q: got=%d want=%d", k, seen[k], v)
		}
	}
}

func TestTableCopyIsIndependent(t *testing.T) {
	original := NewTable()
	original.Set(&String{Value: "nested"}, &Array{Elements: []Object{&Integer{Value: 1}}})

	clone := original.Copy()
	nested, _ := clone.Get(&String{Value: "nested"})
	nestedArr := nested.(*Array)
	nestedArr.Elements[0] = &Integer{Value: 999}

	origNested, _ := original.Get(&String{Value: "nested"})
	if origNested.(*Array).Elements[0].(*Integer).Value != 1 {
		t.Error("mutating the copy's nested array affected the original")
	}
}
