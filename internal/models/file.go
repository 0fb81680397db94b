package models

// SourceExtension is the only file extension docweave reads or rewrites.
const SourceExtension = ".py"

// IgnoredDirs are never descended into when walking a project.
var IgnoredDirs = map[string]bool{
	".git":         true,
	"__pycache__":  true,
	".venv":        true,
	"venv":         true,
	"node_modules": true,
	"build":        true,
	"dist":         true,
	".tox":         true,
}
