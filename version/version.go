package version

// Ver holds the version derived from the latest git tag.
// Populated at build time using:
//
//	go build -ldflags "-X github.com/hbkit/hbkit/version.Ver=`git describe --tags`"
var Ver string

// Rev holds the short git commit hash the binary was built from.
// Populated at build time using:
//
//	go build -ldflags "-X github.com/hbkit/hbkit/version.Rev=`git rev-parse --short HEAD`"
var Rev string
