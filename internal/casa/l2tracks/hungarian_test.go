package l2tracks

import "testing"

func TestHungarianAssign_Empty(t *testing.T) {
	if result := hungarianAssign(nil); result != nil {
		t.Errorf("expected nil for empty cost matrix, got %v", result)
	}
}

func TestHungarianAssign_NoColumns(t *testing.T) {
	result := hungarianAssign([][]float64{{}, {}})
	if len(result) != 2 || result[0] != -1 || result[1] != -1 {
		t.Errorf("expected [-1 -1], got %v", result)
	}
}

func TestHungarianAssign_SquareOptimal(t *testing.T) {
	//   [1 2 3]     optimal: 0→0, 1→1, 2→2 = 10
	//   [4 4 6]
	//   [9 8 5]
	cost := [][]float64{
		{1, 2, 3},
		{4, 4, 6},
		{9, 8, 5},
	}
	result := hungarianAssign(cost)
	if len(result) != 3 {
		t.Fatalf("expected 3 assignments, got %d", len(result))
	}
	total := 0.0
	for i, j := range result {
		if j < 0 {
			t.Errorf("row %d unassigned", i)
			continue
		}
		total += cost[i][j]
	}
	if total != 10 {
		t.Errorf("expected optimal cost 10, got %v (assignments: %v)", total, result)
	}
}

func TestHungarianAssign_Forbidden(t *testing.T) {
	cost := [][]float64{
		{1, 2},
		{forbiddenCost, forbiddenCost},
	}
	result := hungarianAssign(cost)
	if result[0] < 0 {
		t.Errorf("row 0 should be assigned, got %d", result[0])
	}
	if result[1] != -1 {
		t.Errorf("row 1 should be unassigned, got %d", result[1])
	}
}

func TestHungarianAssign_MoreRowsThanCols(t *testing.T) {
	cost := [][]float64{
		{1, 10},
		{10, 1},
		{5, 5},
	}
	result := hungarianAssign(cost)
	if result[0] != 0 || result[1] != 1 || result[2] != -1 {
		t.Errorf("expected [0 1 -1], got %v", result)
	}
}

func TestHungarianAssign_MoreColsThanRows(t *testing.T) {
	cost := [][]float64{
		{7, 3, 9},
	}
	result := hungarianAssign(cost)
	if len(result) != 1 || result[0] != 1 {
		t.Errorf("expected [1], got %v", result)
	}
}
