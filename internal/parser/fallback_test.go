package parser

import (
	"testing"
)

func TestFallbackCandidate(t *testing.T) {
	text := `JOHN SMITH
john.smith@example.com
(555) 123-4567
linkedin.com/in/johnsmith

Experienced with Java and JavaScript, some Kubernetes.`

	c := fallbackCandidate(text)
	if c == nil {
		t.Fatalf("expected a candidate")
	}
	if c.Name != "John Smith" {
		t.Fatalf("name = %q, expected John Smith", c.Name)
	}
	if c.Email != "john.smith@example.com" {
		t.Fatalf("email = %q", c.Email)
	}
	if c.Phone == "" {
		t.Fatalf("expected a phone number")
	}
	if c.Linkedin != "linkedin.com/in/johnsmith" {
		t.Fatalf("linkedin = %q", c.Linkedin)
	}

	has := func(skill string) bool {
		for _, s := range c.Skills {
			if s == skill {
				return true
			}
		}
		return false
	}
	if !has("java") || !has("javascript") || !has("kubernetes") {
		t.Fatalf("skills = %v, expected java, javascript and kubernetes", c.Skills)
	}
}

func TestFallbackCandidateNoEmail(t *testing.T) {
	if c := fallbackCandidate("John Smith\nNo contact details."); c != nil {
		t.Fatalf("expected nil without an email, got %+v", c)
	}
}

func TestFallbackCandidateNoName(t *testing.T) {
	if c := fallbackCandidate("contact: someone@example.com"); c != nil {
		t.Fatalf("expected nil without a plausible name line, got %+v", c)
	}
}

func TestContainsTermWordBoundary(t *testing.T) {
	if containsTerm("expert in javascript", "java") {
		t.Fatalf("java must not match inside javascript")
	}
	if !containsTerm("expert in java and javascript", "java") {
		t.Fatalf("standalone java should match")
	}
}

func TestFallbackJobMissingIdentity(t *testing.T) {
	if j := fallbackJob("Backend Engineer\nCompany: Acme"); j != nil {
		t.Fatalf("expected nil without a location, got %+v", j)
	}
}
