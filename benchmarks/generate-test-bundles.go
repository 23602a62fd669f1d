// generate-test-bundles.go creates archive bundles of various sizes for
// benchmarking the checker: product labels, the data files they
// reference, and a checksum manifest covering everything.
package main

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func main() {
	dir := "benchmarks/corpus"
	os.MkdirAll(dir, 0755)

	sizes := []struct {
		name     string
		products int
		dataKB   int
	}{
		{"tiny-1p", 1, 1},
		{"small-10p", 10, 16},
		{"medium-100p", 100, 64},
		{"large-500p", 500, 256},
	}

	for _, s := range sizes {
		path := filepath.Join(dir, s.name)
		if err := generateBundle(path, s.products, s.dataKB); err != nil {
			fmt.Fprintf(os.Stderr, "Error generating %s: %v\n", path, err)
			os.Exit(1)
		}
		fmt.Printf("Generated %s (%d products)\n", path, s.products)
	}
}

func generateBundle(dir string, products, dataKB int) error {
	if err := os.MkdirAll(filepath.Join(dir, "data"), 0755); err != nil {
		return err
	}

	var manifest strings.Builder
	for i := 0; i < products; i++ {
		dataName := fmt.Sprintf("product_%04d.img", i)
		data := make([]byte, dataKB*1024)
		for j := range data {
			data[j] = byte((i + j) % 251)
		}
		if err := os.WriteFile(filepath.Join(dir, "data", dataName), data, 0644); err != nil {
			return err
		}
		sum := md5.Sum(data)
		digest := hex.EncodeToString(sum[:])

		labelName := fmt.Sprintf("product_%04d.xml", i)
		label := productLabel(i, dataName, digest, len(data))
		if err := os.WriteFile(filepath.Join(dir, labelName), []byte(label), 0644); err != nil {
			return err
		}
		labelSum := md5.Sum([]byte(label))
		fmt.Fprintf(&manifest, "%s  data/%s\n", digest, dataName)
		fmt.Fprintf(&manifest, "%s  %s\n", hex.EncodeToString(labelSum[:]), labelName)
	}
	return os.WriteFile(filepath.Join(dir, "checksums.md5"), []byte(manifest.String()), 0644)
}

func productLabel(id int, dataName, digest string, size int) string {
	return fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<Product_Observational xmlns="http://pds.nasa.gov/pds4/pds/v1">
  <Identification_Area>
    <logical_identifier>urn:nasa:pds:benchmark:data:product_%04d</logical_identifier>
  </Identification_Area>
  <File_Area_Observational>
    <File>
      <file_name>%s</file_name>
      <directory_path_name>data</directory_path_name>
      <md5_checksum>%s</md5_checksum>
      <file_size unit="byte">%d</file_size>
    </File>
  </File_Area_Observational>
</Product_Observational>
`, id, dataName, digest, size)
}
