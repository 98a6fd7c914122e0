package document

import "testing"

func TestRowMultibyteIndexing(t *testing.T) {
	row := NewRow("añb🙂c")
	if row.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", row.Len())
	}

	row.Insert(4, 'é')
	if got := row.String(); got != "añb🙂éc" {
		t.Errorf("after Insert String() = %q, want %q", got, "añb🙂éc")
	}

	row.Delete(3)
	if got := row.String(); got != "añbéc" {
		t.Errorf("after Delete String() = %q, want %q", got, "añbéc")
	}
	if row.Len() != 5 {
		t.Errorf("Len() = %d, want 5", row.Len())
	}
}

func TestRowInsertBounds(t *testing.T) {
	row := NewRow("ab")
	row.Insert(0, '<')
	row.Insert(99, '>')
	if got := row.String(); got != "<ab>" {
		t.Errorf("String() = %q, want %q", got, "<ab>")
	}
}

func TestRowDeleteOutOfRange(t *testing.T) {
	row := NewRow("ab")
	row.Delete(2)
	row.Delete(-1)
	if got := row.String(); got != "ab" || row.Len() != 2 {
		t.Errorf("String() = %q Len() = %d, want %q 2", got, row.Len(), "ab")
	}
}

func TestRowSplitAndAppend(t *testing.T) {
	testCases := []struct {
		at         int
		head, tail string
	}{
		{0, "", "日本語"},
		{1, "日", "本語"},
		{3, "日本語", ""},
		{10, "日本語", ""},
	}

	for _, tc := range testCases {
		row := NewRow("日本語")
		rest := row.Split(tc.at)
		if row.String() != tc.head || rest.String() != tc.tail {
			t.Errorf("Split(%d) = %q, %q; want %q, %q", tc.at, row.String(), rest.String(), tc.head, tc.tail)
		}
		if row.Len()+rest.Len() != 3 {
			t.Errorf("Split(%d) lengths %d+%d, want 3", tc.at, row.Len(), rest.Len())
		}

		row.Append(rest)
		if row.String() != "日本語" || row.Len() != 3 {
			t.Errorf("Append after Split(%d) = %q (len %d)", tc.at, row.String(), row.Len())
		}
	}
}

func TestRowSlice(t *testing.T) {
	row := NewRow("héllo")
	testCases := []struct {
		start, end int
		want       string
	}{
		{0, 2, "hé"},
		{1, 99, "éllo"},
		{4, 2, ""},
		{-3, 1, "h"},
	}
	for _, tc := range testCases {
		if got := row.Slice(tc.start, tc.end); got != tc.want {
			t.Errorf("Slice(%d, %d) = %q, want %q", tc.start, tc.end, got, tc.want)
		}
	}
}
