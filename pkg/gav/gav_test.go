package gav

import "testing"

func TestSplitFileName(t *testing.T) {
	tests := []struct {
		name         string
		file         string
		wantArtifact string
		wantVersion  string
		wantOK       bool
	}{
		{"simple", "foo-1.2.3.jar", "foo", "1.2.3", true},
		{"dashed artifact", "spring-boot-starter-web-3.1.0.jar", "spring-boot-starter-web", "3.1.0", true},
		{"qualifier", "foo-bar-1.0-SNAPSHOT.jar", "foo-bar", "1.0-SNAPSHOT", true},
		{"no extension", "guava-32.1.2", "guava", "32.1.2", true},
		{"two version tokens", "foo-1.2-2.3.jar", "", "", false},
		{"no version token", "internal-lib.jar", "", "", false},
		{"leading version", "1.0-foo.jar", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, v, ok := SplitFileName(tt.file)
			if ok != tt.wantOK || a != tt.wantArtifact || v != tt.wantVersion {
				t.Errorf("SplitFileName(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.file, a, v, ok, tt.wantArtifact, tt.wantVersion, tt.wantOK)
			}
		})
	}
}

func TestCoordinatePaths(t *testing.T) {
	c := New("org.slf4j", "slf4j-api", "2.0.9")

	if got, want := c.JarPath(), "org/slf4j/slf4j-api/2.0.9/slf4j-api-2.0.9.jar"; got != want {
		t.Errorf("JarPath() = %q, want %q", got, want)
	}
	if got, want := c.SHA1Path(), "org/slf4j/slf4j-api/2.0.9/slf4j-api-2.0.9.jar.sha1"; got != want {
		t.Errorf("SHA1Path() = %q, want %q", got, want)
	}
	if got, want := c.POMPath(), "org/slf4j/slf4j-api/2.0.9/slf4j-api-2.0.9.pom"; got != want {
		t.Errorf("POMPath() = %q, want %q", got, want)
	}
	if got, want := URL("https://repo1.maven.org/maven2/", c.JarPath()), "https://repo1.maven.org/maven2/org/slf4j/slf4j-api/2.0.9/slf4j-api-2.0.9.jar"; got != want {
		t.Errorf("URL() = %q, want %q", got, want)
	}
}

func TestParse(t *testing.T) {
	c, err := Parse("com.acme:widget:1.0")
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if c != New("com.acme", "widget", "1.0") {
		t.Errorf("Parse() = %v", c)
	}
	for _, bad := range []string{"", "a:b", "a::c", "a:b:c:d"} {
		if _, err := Parse(bad); err == nil {
			t.Errorf("Parse(%q) expected error", bad)
		}
	}
}

func TestCompleteness(t *testing.T) {
	if !(Coordinate{}).IsZero() {
		t.Error("zero coordinate should report IsZero")
	}
	partial := Coordinate{Artifact: "foo", Version: "1.0"}
	if partial.Complete() || partial.IsZero() {
		t.Error("partial coordinate misreported")
	}
	if got := partial.WithGroup("g"); !got.Complete() {
		t.Error("WithGroup should complete the coordinate")
	}
}
