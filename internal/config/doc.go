// Package config provides configuration parsing for telepath projects.
//
// The configuration is stored in telepath.json (or telepath.yaml) at the
// project root. Without one, the defaults below apply and the project root
// is the directory holding go.mod.
//
// # Configuration File Structure
//
//	{
//	  "module": "example.com/app",
//	  "scan": {
//	    "dirs": ["internal/nav"],
//	    "exclude": ["legacy", "*_mock.go"]
//	  },
//	  "gen": {
//	    "output": "internal/routes/telepath_gen.go",
//	    "package": "routes"
//	  },
//	  "manifest": {
//	    "enabled": true,
//	    "path": "telepath_routes.tsv",
//	    "s3": {"bucket": "build-artifacts", "key": "app/routes.tsv", "region": "eu-west-1"}
//	  },
//	  "watch": {"debounce": "200ms", "ignore": ["*.tmp"]},
//	  "log": {"level": "info", "format": "console"}
//	}
//
// # Usage
//
//	cfg, err := config.LoadFromWorkingDir()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
package config
