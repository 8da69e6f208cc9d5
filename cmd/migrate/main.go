// Command migrate maintains a directory of exported drafts.
package main

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	hashSuffixRe = regexp.MustCompile(`-([0-9a-f]{8})\.(md|html)$`)
	legacyRe     = regexp.MustCompile(`\.md$`)
)

// frontMatter is the part of an exported draft's header the migrations need
type frontMatter struct {
	SourceURL string `yaml:"source_url"`
	Platform  string `yaml:"platform"`
}

func main() {
	if len(os.Args) < 3 {
		log.Fatal("Usage: migrate <add-hashes|remove-duplicates> <drafts-directory>")
	}

	command := os.Args[1]
	draftsDir := os.Args[2]

	switch command {
	case "add-hashes":
		if err := addHashes(draftsDir); err != nil {
			log.Fatal(err)
		}
	case "remove-duplicates":
		if err := removeDuplicates(draftsDir, os.Stdin, os.Stdout); err != nil {
			log.Fatal(err)
		}
	default:
		log.Fatalf("Unknown command %q", command)
	}
}

// addHashes renames markdown exports written before file names carried the
// source/platform hash
func addHashes(draftsDir string) error {
	return filepath.WalkDir(draftsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Continue on errors
		}

		if !d.IsDir() && legacyRe.MatchString(path) {
			if err := processFile(path); err != nil {
				log.Printf("Error processing %s: %v", path, err)
			}
		}

		return nil
	})
}

func processFile(filePath string) error {
	fileName := filepath.Base(filePath)
	if hasHash(fileName) {
		log.Printf("File %s already has hash, skipping", fileName)
		return nil
	}

	content, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading file %s: %w", filePath, err)
	}

	fm, err := parseFrontMatter(content)
	if err != nil {
		return err
	}
	if fm.SourceURL == "" || fm.Platform == "" {
		log.Printf("No source_url or platform in %s, skipping", filePath)
		return nil
	}

	hash := draftHash(fm.SourceURL, fm.Platform)
	newFileName := fmt.Sprintf("%s-%s.md", strings.TrimSuffix(fileName, ".md"), hash)
	newFilePath := filepath.Join(filepath.Dir(filePath), newFileName)

	log.Printf("Renaming %s -> %s", fileName, newFileName)
	return os.Rename(filePath, newFilePath)
}

// parseFrontMatter decodes the YAML block between the leading "---" lines
func parseFrontMatter(content []byte) (*frontMatter, error) {
	content = bytes.TrimLeft(content, "\ufeff \t\r\n")
	if !bytes.HasPrefix(content, []byte("---")) {
		return nil, fmt.Errorf("no front matter")
	}
	rest := content[3:]
	end := bytes.Index(rest, []byte("\n---"))
	if end < 0 {
		return nil, fmt.Errorf("unterminated front matter")
	}

	var fm frontMatter
	if err := yaml.Unmarshal(rest[:end], &fm); err != nil {
		return nil, fmt.Errorf("parsing front matter: %w", err)
	}
	return &fm, nil
}

func draftHash(sourceURL, platform string) string {
	h := sha256.Sum256([]byte(sourceURL + "|" + platform))
	return fmt.Sprintf("%x", h)[:8]
}

func hasHash(fileName string) bool {
	return hashSuffixRe.MatchString(fileName)
}

func extractHash(fileName string) string {
	matches := hashSuffixRe.FindStringSubmatch(fileName)
	if len(matches) >= 3 {
		return matches[1] + "." + matches[2]
	}
	return ""
}

// removeDuplicates keeps the first export of every hash and asks before
// deleting the others
func removeDuplicates(draftsDir string, in io.Reader, out io.Writer) error {
	hashToFiles := make(map[string][]string)
	reader := bufio.NewReader(in)

	if err := filepath.WalkDir(draftsDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // Continue on errors
		}

		if !d.IsDir() {
			if key := extractHash(filepath.Base(path)); key != "" {
				hashToFiles[key] = append(hashToFiles[key], path)
			}
		}
		return nil
	}); err != nil {
		return fmt.Errorf("walking directory: %w", err)
	}

	keys := make([]string, 0, len(hashToFiles))
	for key := range hashToFiles {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	totalRemoved := 0
	for _, key := range keys {
		files := hashToFiles[key]
		if len(files) <= 1 {
			continue
		}

		fmt.Fprintf(out, "\nFound %d duplicates with hash %s:\n", len(files), key)
		for i, file := range files {
			fileName := filepath.Base(file)
			if i == 0 {
				fmt.Fprintf(out, "  KEEP: %s\n", fileName)
				continue
			}

			if confirmDelete(reader, out, file) {
				if err := os.Remove(file); err != nil {
					log.Printf("Error removing %s: %v", file, err)
				} else {
					totalRemoved++
					fmt.Fprintf(out, "  REMOVED: %s\n", fileName)
				}
			} else {
				fmt.Fprintf(out, "  SKIP: %s\n", fileName)
			}
		}
	}

	fmt.Fprintf(out, "\nRemoved %d duplicate files\n", totalRemoved)
	return nil
}

func confirmDelete(reader *bufio.Reader, out io.Writer, path string) bool {
	for {
		fmt.Fprintf(out, "  DELETE %s? [y/N]: ", filepath.Base(path))
		input, err := reader.ReadString('\n')
		if err != nil && input == "" {
			return false
		}
		response := strings.ToLower(strings.TrimSpace(input))
		switch response {
		case "y", "yes":
			return true
		case "", "n", "no":
			return false
		default:
			if err != nil {
				return false
			}
			fmt.Fprintln(out, "  Please enter y or n.")
		}
	}
}
