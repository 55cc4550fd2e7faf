package main

import (
	"flag"
	"log"
	"os"
	"os/exec"
	"path/filepath"
)

const dockerfile = `FROM public.ecr.aws/lambda/provided:al2023

COPY bootstrap ${LAMBDA_RUNTIME_DIR}/bootstrap

# The selector is <module>.<handler>; every function registers "handler"
CMD ["bootstrap.handler"]
`

func main() {
	functionsDir := flag.String("dir", filepath.Join("functions", "go"), "directory holding one package per function")
	prefix := flag.String("prefix", "faasruntime-", "image tag prefix")
	skipImages := flag.Bool("skip-images", false, "only build the bootstrap binaries")
	flag.Parse()

	functions := []string{"echo", "sleep", "simul", "bfs", "thumbnailer", "crash"}

	// Build Go executables for each function
	for _, fn := range functions {
		buildExecutable(filepath.Join(*functionsDir, fn))
	}

	if *skipImages {
		return
	}

	// Build Docker images for each function
	for _, fn := range functions {
		buildDockerImage(filepath.Join(*functionsDir, fn), *prefix+fn)
	}
}

func buildExecutable(dir string) {
	log.Printf("Building %s bootstrap...\n", dir)
	cmd := exec.Command("go", "build", "-o", filepath.Join(dir, "bootstrap"), "./"+dir)
	cmd.Env = append(os.Environ(), "GOOS=linux", "GOARCH=amd64", "CGO_ENABLED=0")
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Fatalf("Failed to build %s: %s\n%s", dir, err, output)
	}
	log.Printf("Built %s bootstrap successfully.\n", dir)
}

func buildDockerImage(dir, tag string) {
	log.Printf("Building Docker image %s...\n", tag)

	// Write Dockerfile
	dockerfilePath := filepath.Join(dir, "Dockerfile")
	err := os.WriteFile(dockerfilePath, []byte(dockerfile), 0644)
	if err != nil {
		log.Fatalf("Failed to write Dockerfile: %s", err)
	}

	// Build Docker image
	cmd := exec.Command("docker", "build", "-t", tag, dir)
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Fatalf("Failed to build Docker image %s: %s\n%s", tag, err, output)
	}
	log.Printf("Built Docker image %s successfully.\n", tag)
}
