package label

import (
	"testing"
)

const sampleLabel = `<?xml version="1.0" encoding="UTF-8"?>
<?xml-model href="https://pds.nasa.gov/pds4/pds/v1/PDS4_PDS_1B00.sch" schematypens="http://purl.oclc.org/dsdl/schematron"?>
<Product_Observational xmlns="http://pds.nasa.gov/pds4/pds/v1"
    xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
    xsi:schemaLocation="http://pds.nasa.gov/pds4/pds/v1 https://pds.nasa.gov/pds4/pds/v1/PDS4_PDS_1B00.xsd">
  <Identification_Area>
    <logical_identifier>urn:nasa:pds:example:data:image</logical_identifier>
  </Identification_Area>
  <File_Area_Observational>
    <File>
      <file_name>image.img</file_name>
      <md5_checksum>5d41402abc4b2a76b9719d911017c592</md5_checksum>
      <file_size unit="byte">5</file_size>
    </File>
  </File_Area_Observational>
  <Document_File xml:base="chapter1.xml">
    <file_name>chapter1.pdf</file_name>
  </Document_File>
</Product_Observational>
`

func mustParse(t *testing.T, data, systemID string) *Document {
	t.Helper()
	doc, err := Parse([]byte(data), systemID)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestParseRootAndSystemID(t *testing.T) {
	doc := mustParse(t, sampleLabel, "file:///archive/image.xml")
	if doc.SystemID != "file:///archive/image.xml" {
		t.Errorf("SystemID = %q", doc.SystemID)
	}
	if doc.Root == nil || doc.Root.Name.Local != "Product_Observational" {
		t.Fatalf("unexpected root: %+v", doc.Root)
	}
}

func TestFileObjects(t *testing.T) {
	doc := mustParse(t, sampleLabel, "file:///archive/image.xml")
	objects := doc.FileObjects()
	if len(objects) != 2 {
		t.Fatalf("FileObjects = %d, want 2", len(objects))
	}

	name, line, ok := objects[0].ChildValue("file_name")
	if !ok || name != "image.img" {
		t.Errorf("file_name = %q, ok=%v", name, ok)
	}
	if line != 11 {
		t.Errorf("file_name line = %d, want 11", line)
	}
	sum, _, ok := objects[0].ChildValue("md5_checksum")
	if !ok || sum != "5d41402abc4b2a76b9719d911017c592" {
		t.Errorf("md5_checksum = %q, ok=%v", sum, ok)
	}
	size, _, ok := objects[0].ChildValue("file_size")
	if !ok || size != "5" {
		t.Errorf("file_size = %q, ok=%v", size, ok)
	}

	name, _, ok = objects[1].ChildValue("file_name")
	if !ok || name != "chapter1.pdf" {
		t.Errorf("document file_name = %q, ok=%v", name, ok)
	}
	if _, _, ok := objects[1].ChildValue("md5_checksum"); ok {
		t.Error("document file should have no md5_checksum")
	}
}

func TestBaseAttributes(t *testing.T) {
	doc := mustParse(t, sampleLabel, "file:///archive/image.xml")
	bases := doc.BaseAttributes()
	if len(bases) != 1 || bases[0] != "chapter1.xml" {
		t.Errorf("BaseAttributes = %v", bases)
	}
}

func TestSchemaLocations(t *testing.T) {
	doc := mustParse(t, sampleLabel, "file:///archive/image.xml")
	locs := doc.SchemaLocations()
	if len(locs) != 1 {
		t.Fatalf("SchemaLocations = %d, want 1", len(locs))
	}
	if locs[0].Namespace != "http://pds.nasa.gov/pds4/pds/v1" {
		t.Errorf("namespace = %q", locs[0].Namespace)
	}
	if locs[0].Location != "https://pds.nasa.gov/pds4/pds/v1/PDS4_PDS_1B00.xsd" {
		t.Errorf("location = %q", locs[0].Location)
	}
}

func TestSchematronReferences(t *testing.T) {
	doc := mustParse(t, sampleLabel, "file:///archive/image.xml")
	refs := doc.SchematronReferences()
	if len(refs) != 1 || refs[0] != "https://pds.nasa.gov/pds4/pds/v1/PDS4_PDS_1B00.sch" {
		t.Errorf("SchematronReferences = %v", refs)
	}
}

func TestSchematronReferencesIgnoresOtherModels(t *testing.T) {
	doc := mustParse(t, `<?xml version="1.0"?>
<?xml-model href="style.rnc" schematypens="http://relaxng.org/ns/structure/1.0"?>
<Product/>`, "file:///p.xml")
	if refs := doc.SchematronReferences(); len(refs) != 0 {
		t.Errorf("SchematronReferences = %v, want none", refs)
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse([]byte(`<Product>`), "file:///p.xml"); err == nil {
		t.Error("unclosed element should fail")
	}
	if _, err := Parse([]byte(``), "file:///p.xml"); err == nil {
		t.Error("empty input should fail")
	}
	if _, err := Parse([]byte(`not xml at all <`), "file:///p.xml"); err == nil {
		t.Error("garbage input should fail")
	}
}
