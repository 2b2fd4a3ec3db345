package shards

// DefaultTerm is the literal prefix of OpenAI project keys.
const DefaultTerm = "sk-proj-"

// Languages where leaked keys are commonly committed, followed by the
// yaml/json file-type languages.
var DefaultLanguages = []string{
	"python", "javascript", "typescript", "java", "php", "ruby", "go",
	"rust", "csharp", "cpp", "c", "shell", "powershell",
	"yaml", "json",
}

// DefaultExtensions are file extensions keys tend to live in.
var DefaultExtensions = []string{
	"env", "config", "ini", "conf", "properties", "settings", "cfg",
	"toml", "yml", "yaml", "json", "txt", "log", "py", "js", "ts",
}

// DefaultCombos pair languages with compatible configuration extensions.
var DefaultCombos = []Combo{
	{"python", "py"},
	{"python", "config"},
	{"python", "ini"},
	{"javascript", "js"},
	{"javascript", "json"},
	{"javascript", "config"},
	{"typescript", "ts"},
	{"typescript", "json"},
	{"shell", "env"},
	{"shell", "config"},
	{"shell", "ini"},
	{"powershell", "config"},
	{"powershell", "ini"},
	{"java", "properties"},
	{"java", "config"},
	{"php", "config"},
	{"ruby", "config"},
	{"go", "config"},
}

// DefaultFilenames are filename fragments of configuration files.
var DefaultFilenames = []string{
	".env", "config", "settings", "local", "dev", "prod", "development", "production",
}

// DefaultPaths are path fragments of common configuration locations.
var DefaultPaths = []string{
	"config", "env", "settings", ".github", "docker", "scripts",
}

// DefaultConfig returns the full catalog configuration with every dimension.
func DefaultConfig() Config {
	return Config{
		Term:       DefaultTerm,
		Dimensions: Dimensions(),
		Languages:  append([]string(nil), DefaultLanguages...),
		Extensions: append([]string(nil), DefaultExtensions...),
		Combos:     append([]Combo(nil), DefaultCombos...),
		Filenames:  append([]string(nil), DefaultFilenames...),
		Paths:      append([]string(nil), DefaultPaths...),
	}
}
