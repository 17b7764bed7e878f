package hcl

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/leowmjw/go-temporal-trajectory/pkg/temporal"
)

// MergeHCLFiles parses each file and merges their bodies, the way Terraform
// loads the .tf files of a module. Diagnostics keep the originating file name
// and an attribute set in two files is reported as a duplicate.
func MergeHCLFiles(filePaths []string) (hcl.Body, error) {
	parser := hclparse.NewParser()
	files := make([]*hcl.File, 0, len(filePaths))

	for _, path := range filePaths {
		file, diags := parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse %s: %s", path, diags.Error())
		}
		files = append(files, file)
	}

	return hcl.MergeFiles(files), nil
}

// ParseHCLDirectory parses all .hcl files in a directory, in lexical order,
// and returns the merged pipeline.
func ParseHCLDirectory(dirPath string) (*temporal.SummaryRequest, error) {
	var hclFiles []string
	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && IsHCLBasedOnExtension(info.Name()) {
			hclFiles = append(hclFiles, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory %s: %w", dirPath, err)
	}

	if len(hclFiles) == 0 {
		return nil, fmt.Errorf("no HCL files found in directory %s", dirPath)
	}
	sort.Strings(hclFiles)

	body, err := MergeHCLFiles(hclFiles)
	if err != nil {
		return nil, err
	}
	return parsePipelineBody(body)
}

// LoadPipeline reads a pipeline from a directory of HCL files, a single HCL
// file or a JSON file.
func LoadPipeline(path string) (*temporal.SummaryRequest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat pipeline %s: %w", path, err)
	}
	if info.IsDir() {
		return ParseHCLDirectory(path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline %s: %w", path, err)
	}
	if IsHCLBasedOnExtension(path) || DetectContent(content) == ContentTypeHCL {
		return ParseHCLPipeline(string(content))
	}

	var req temporal.SummaryRequest
	if err := json.Unmarshal(content, &req); err != nil {
		return nil, fmt.Errorf("failed to decode pipeline %s: %w", path, err)
	}
	return &req, nil
}
