package migrate

import (
	"reflect"
	"testing"
)

func TestPlan(t *testing.T) {
	src := map[string]int64{
		"t/data/a.parquet": 100,
		"t/data/b.parquet": 200,
		"t/data/c.parquet": 300,
	}

	tests := []struct {
		name  string
		dst   map[string]int64
		force bool
		want  []string
	}{
		{
			name: "empty destination transfers everything",
			dst:  map[string]int64{},
			want: []string{"t/data/a.parquet", "t/data/b.parquet", "t/data/c.parquet"},
		},
		{
			name: "matching objects are skipped",
			dst: map[string]int64{
				"t/data/a.parquet": 100,
				"t/data/b.parquet": 200,
				"t/data/c.parquet": 300,
			},
			want: []string{},
		},
		{
			name: "size mismatch forces re-transfer",
			dst: map[string]int64{
				"t/data/a.parquet": 100,
				"t/data/b.parquet": 999,
				"t/data/c.parquet": 300,
			},
			want: []string{"t/data/b.parquet"},
		},
		{
			name: "extra destination objects are ignored",
			dst: map[string]int64{
				"t/data/a.parquet": 100,
				"t/data/b.parquet": 200,
				"t/data/c.parquet": 300,
				"t/data/old.parquet": 50,
			},
			want: []string{},
		},
		{
			name: "force transfers all regardless of destination",
			dst: map[string]int64{
				"t/data/a.parquet": 100,
				"t/data/b.parquet": 200,
				"t/data/c.parquet": 300,
			},
			force: true,
			want:  []string{"t/data/a.parquet", "t/data/b.parquet", "t/data/c.parquet"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Plan(src, tt.dst, tt.force)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Plan() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlanEmptySource(t *testing.T) {
	if got := Plan(nil, map[string]int64{"x": 1}, false); len(got) != 0 {
		t.Errorf("Plan() = %v, want empty", got)
	}
}
