//go:build mage

package main

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"syscall"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

var (
	Go = "go"
)

const (
	mainPackage = "./cmd/vciservice"
	binary      = "bin/vci-service"
	composeDir  = "build"

	// integrationTag selects the tests that run against a live service.
	integrationTag = "integration"

	swagCommand = "swag"
	swagPackage = "github.com/swaggo/swag/cmd/swag@latest"
)

// Build builds the service binary.
func Build() error {
	fmt.Println("Building...")
	return sh.Run(Go, "build", "-o", binary, mainPackage)
}

// Clean deletes any build artifacts.
func Clean() error {
	fmt.Println("Cleaning...")
	return sh.Rm("bin")
}

// Run starts the service with redis and jaeger via docker-compose.
func Run() error {
	mg.Deps(dockerReady)
	return compose("up", "--build")
}

// CleanRun removes the docker-compose containers, network and images.
func CleanRun() error {
	mg.Deps(dockerReady)
	fmt.Println("Cleaning containers...")
	return compose("down", "--rmi", "local")
}

// Test runs unit tests. The mage `-v` option makes the output verbose.
func Test() error {
	return goTest(testOptions{race: true})
}

// CITest runs unit tests with coverage written to coverage.out.
func CITest() error {
	return goTest(testOptions{race: true, coverage: true})
}

// Integration runs the integration tests against a service started with Run. VCI_SERVICE_ENDPOINT overrides the
// default endpoint of http://localhost:3000/.
func Integration() error {
	return goTest(testOptions{tags: integrationTag, packages: "./integration/...", uncached: true})
}

// Spec regenerates doc/swagger.yaml from the handler annotations.
func Spec() error {
	if err := installTool(swagCommand, swagPackage); err != nil {
		return err
	}
	return sh.Run(swagCommand, "init", "-g", "cmd/vciservice/main.go", "--pd", "-o", "doc", "-ot", "yaml")
}

// CBT runs clean; build; test.
func CBT() error {
	if err := Clean(); err != nil {
		return err
	}
	if err := Build(); err != nil {
		return err
	}
	return Test()
}

type testOptions struct {
	race     bool
	coverage bool
	uncached bool
	tags     string
	packages string
}

func (o testOptions) args() []string {
	args := []string{"test"}
	if mg.Verbose() {
		args = append(args, "-v")
	}
	if o.race {
		args = append(args, "-race")
	}
	if o.coverage {
		args = append(args, "-covermode=atomic", "-coverprofile=coverage.out")
	}
	if o.uncached {
		args = append(args, "-count=1")
	}
	if o.tags != "" {
		args = append(args, "-tags="+o.tags)
	}
	packages := o.packages
	if packages == "" {
		packages = "./..."
	}
	return append(args, packages)
}

func goTest(opts testOptions) error {
	env := map[string]string{"GO111MODULE": "on"}
	if opts.race {
		// the race detector needs cgo
		env["CGO_ENABLED"] = "1"
	}
	args := opts.args()
	logrus.Infof("%s %v", Go, args)
	_, err := sh.Exec(env, colorizedStdout(), os.Stderr, Go, args...)
	return err
}

func compose(args ...string) error {
	return sh.Run("docker-compose", append([]string{"--project-directory", composeDir}, args...)...)
}

func dockerReady() error {
	if err := sh.Run("docker", "ps"); !sh.CmdRan(err) {
		return fmt.Errorf("could not run docker: %w", err)
	}
	return nil
}

// installTool installs a go based tool unless it is on PATH or in GOPATH/bin already.
func installTool(execName, goPackage string) error {
	if _, err := exec.LookPath(execName); err == nil {
		return nil
	}
	gopath, err := sh.Output(Go, "env", "GOPATH")
	if err != nil {
		return err
	}
	if _, err = os.Stat(filepath.Join(gopath, "bin", execName)); err == nil {
		return nil
	}
	logrus.Infof("installing %s", goPackage)
	return sh.Run(Go, "install", goPackage)
}

func colorizedStdout() io.Writer {
	if !term.IsTerminal(syscall.Stdout) {
		return os.Stdout
	}
	passed := newRegexpWriter(os.Stdout, `PASS.*`, "\033[32m$0\033[0m")
	return newRegexpWriter(passed, `FAIL.*`, "\033[31m$0\033[0m")
}

type regexpWriter struct {
	inner io.Writer
	re    *regexp.Regexp
	repl  []byte
}

func newRegexpWriter(inner io.Writer, re string, repl string) io.Writer {
	return &regexpWriter{inner, regexp.MustCompile(re), []byte(repl)}
}

func (w *regexpWriter) Write(p []byte) (int, error) {
	r := w.re.ReplaceAll(p, w.repl)
	n, err := w.inner.Write(r)
	if n > len(r) {
		n = len(r)
	}
	return n, err
}
