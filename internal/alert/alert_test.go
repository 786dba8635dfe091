package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAlert(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		summary  string
		keywords []string
		want     bool
	}{
		{"title match", "War escalates", "", []string{"war"}, true},
		{"case insensitive", "MISSILE test", "", []string{"missile"}, true},
		{"summary match", "Update", "troops moved overnight", []string{"troops"}, true},
		{"multi word", "", "reports of a drone strike near the border", []string{"drone strike"}, true},
		{"substring", "Software release", "", []string{"war"}, true},
		{"no match", "Markets rally", "stocks up", []string{"war", "coup"}, false},
		{"empty keywords", "War", "", nil, false},
		{"blank keyword ignored", "anything", "", []string{""}, false},
		{"spans title and summary", "drone", "strike", []string{"drone strike"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAlert(tt.title, tt.summary, tt.keywords))
			assert.Equal(t, tt.want, NewClassifier(tt.keywords).IsAlert(tt.title, tt.summary))
		})
	}
}

func TestClassifier(t *testing.T) {
	c := NewClassifier([]string{" War ", "war", "", "Coup"})
	assert.Equal(t, []string{"war", "coup"}, c.Keywords())
	assert.Equal(t, "coup", c.Match("Military coup", ""))
	assert.Equal(t, "", c.Match("Calm day", ""))

	var nilClassifier *Classifier
	assert.False(t, nilClassifier.IsAlert("war", ""))
}

func TestDefaultKeywords(t *testing.T) {
	c := NewClassifier(DefaultKeywords)
	assert.Len(t, c.Keywords(), len(DefaultKeywords))
	assert.True(t, c.IsAlert("City-wide blackout", ""))
}
