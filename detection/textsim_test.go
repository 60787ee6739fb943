package detection

import "testing"

func TestTextSimilarityIdentical(t *testing.T) {
	score := TextSimilarity("Pothole on Main St", "Pothole on Main St")
	if score != 100 {
		t.Errorf("Expected self-similarity 100, got %f", score)
	}
}

func TestTextSimilaritySymmetric(t *testing.T) {
	pairs := [][2]string{
		{"Pothole on Main St", "Big pothole at Main Street"},
		{"Broken streetlight", "Water leak near the park"},
		{"Overflowing trash bin", "Trash bin overflowing"},
	}
	for _, pair := range pairs {
		ab := TextSimilarity(pair[0], pair[1])
		ba := TextSimilarity(pair[1], pair[0])
		if ab != ba {
			t.Errorf("Similarity not symmetric for %q / %q: %f vs %f", pair[0], pair[1], ab, ba)
		}
	}
}

func TestTextSimilarityNearDuplicate(t *testing.T) {
	score := TextSimilarity("Pothole on Main St", "Big pothole at Main Street")
	if score < 80 {
		t.Errorf("Expected near-duplicate score >= 80, got %f", score)
	}
}

func TestTextSimilarityUnrelated(t *testing.T) {
	score := TextSimilarity("Pothole on Main St", "Graffiti covering the playground wall")
	if score >= 80 {
		t.Errorf("Expected unrelated score below 80, got %f", score)
	}
}

func TestTextSimilarityCaseAndPunctuation(t *testing.T) {
	score := TextSimilarity("POTHOLE ON MAIN ST!!!", "pothole on main st")
	if score != 100 {
		t.Errorf("Expected normalized-identical score 100, got %f", score)
	}
}

func TestTextSimilarityEmpty(t *testing.T) {
	if score := TextSimilarity("", "Pothole on Main St"); score != 0 {
		t.Errorf("Expected 0 for empty input, got %f", score)
	}
}

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"pothole", "pothole", 0},
		{"pothole", "potholes", 1},
		{"street", "stret", 1},
		{"kitten", "sitting", 3},
	}
	for _, tc := range cases {
		if got := levenshtein(tc.a, tc.b); got != tc.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}
