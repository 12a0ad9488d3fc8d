package reconstruct

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"path/filepath"

	"github.com/beevik/etree"
	fixzip "github.com/hidez8891/zip"
	"go.uber.org/zap"

	"dxt/catalog"
	"dxt/config"
	"dxt/docx"
	"dxt/issues"
)

// docPrBase is the first drawing object id of inserted pictures.
const docPrBase = 1000

type mediaPart struct {
	name string
	data []byte
}

// Writer produces output package using source package as template: every
// part except main document, its relationships and content types is copied
// unchanged, body of the main document is replaced with new content.
type Writer struct {
	pkg   *docx.Package
	cfg   *config.DocumentConfig
	doc   *etree.Document
	body  *etree.Element
	rels  *docx.Relationships
	types *docx.ContentTypes
	media []mediaPart
	// sectPr is final section properties of the source body.
	sectPr *etree.Element
	nextID int

	rpt *issues.Report
	log *zap.Logger
}

// NewWriter prepares writer for the source package. Main document is parsed
// again so source body stays intact.
func NewWriter(pkg *docx.Package, cfg *config.DocumentConfig, rpt *issues.Report, log *zap.Logger) (*Writer, error) {
	doc, err := pkg.Document()
	if err != nil {
		return nil, fmt.Errorf("unable to read template document: %w", err)
	}
	body, err := docx.BodyElement(doc)
	if err != nil {
		return nil, fmt.Errorf("unable to use template document: %w", err)
	}
	types, err := pkg.ContentTypes()
	if err != nil {
		return nil, fmt.Errorf("unable to read content types: %w", err)
	}
	rels, err := pkg.Relationships()
	if err != nil {
		log.Warn("Template relationship table is unusable, starting new one", zap.Error(err))
		rels = docx.NewRelationships()
	}

	w := &Writer{
		pkg:    pkg,
		cfg:    cfg,
		doc:    doc,
		body:   body,
		rels:   rels,
		types:  types,
		nextID: docPrBase,
		rpt:    rpt,
		log:    log.Named("writer"),
	}
	if sectPr := docx.ChildW(body, "sectPr"); sectPr != nil {
		w.sectPr = sectPr.Copy()
	}
	for _, ch := range body.ChildElements() {
		body.RemoveChild(ch)
	}
	docx.EnsureNamespaces(doc.Root())
	return w, nil
}

// Append adds block level element (paragraph or table) to the body.
func (w *Writer) Append(el *etree.Element) {
	w.body.AddChild(el)
}

// AddImage stores image as new media part and appends paragraph with
// inline picture sized to fit configured box. Image which cannot be
// transcoded is stored as is.
func (w *Writer) AddImage(img *catalog.ImageRecord) {
	data, format, err := Transcode(img, &w.cfg.Images)
	if err != nil {
		w.rpt.Addf(issues.CategoryFormat, img.AssetID, "transcoding failed, keeping original %s: %v", img.Format, err)
		w.log.Warn("Unable to transcode image, keeping original", zap.String("id", img.AssetID), zap.Error(err))
		data, format = img.Data, img.Format
	} else if format != img.Format {
		w.log.Debug("Image transcoded", zap.String("id", img.AssetID), zap.Stringer("from", img.Format), zap.Stringer("to", format))
	}

	name := "dxt_" + img.AssetID + "." + format.Ext()
	part := path.Join(path.Dir(w.pkg.MainPart()), "media", name)
	w.media = append(w.media, mediaPart{name: part, data: data})
	w.types.EnsureDefault(format.Ext(), format.ContentType())
	rid := w.rels.Add(docx.RelTypeImage, "media/"+name)

	wi, hi := DisplaySize(img, &w.cfg.Images)
	pic := docx.Picture{
		RelID: rid,
		ID:    w.nextID,
		Name:  name,
		CX:    emu(wi),
		CY:    emu(hi),
	}
	w.nextID++
	w.Append(docx.NewPictureParagraph(pic, docx.ParagraphProps{Alignment: "center"}))
}

// Document returns output main document, used by tests and XML dumps.
func (w *Writer) Document() *etree.Document {
	return w.doc
}

// Save writes output package to dst. Archive is first assembled in workDir
// and then either copied or rewritten without data descriptors.
func (w *Writer) Save(ctx context.Context, dst, workDir string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if w.sectPr != nil {
		w.body.AddChild(w.sectPr)
		w.sectPr = nil
	}

	tmpName := filepath.Join(workDir, filepath.Base(dst))
	if err := w.writeArchive(tmpName); err != nil {
		return err
	}
	// clean temporary file
	defer os.Remove(tmpName)

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	if w.cfg.FixZip {
		return copyZipWithoutDataDescriptors(tmpName, dst)
	}
	return copyFile(tmpName, dst)
}

func (w *Writer) writeArchive(name string) error {
	f, err := os.Create(name)
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	main, mainRels := w.pkg.MainPart(), w.pkg.MainRelsPart()
	generated := map[string]func() ([]byte, error){
		docx.PartContentTypes: w.types.Bytes,
		main:                  w.doc.WriteToBytes,
		mainRels:              w.rels.Bytes,
	}
	written := make(map[string]bool)

	for _, zf := range w.pkg.Zip().File {
		if written[zf.Name] {
			continue
		}
		if gen, ok := generated[zf.Name]; ok {
			if err := writeGenerated(zw, zf.Name, gen); err != nil {
				return err
			}
		} else if err := zw.Copy(zf); err != nil {
			return fmt.Errorf("unable to copy %s: %w", zf.Name, err)
		}
		written[zf.Name] = true
	}
	// relationship part may be missing in broken source
	for _, part := range []string{docx.PartContentTypes, main, mainRels} {
		if !written[part] {
			if err := writeGenerated(zw, part, generated[part]); err != nil {
				return err
			}
		}
	}
	for _, m := range w.media {
		if err := writeData(zw, m.name, m.data); err != nil {
			return fmt.Errorf("unable to write %s: %w", m.name, err)
		}
	}

	// make sure buffers are flushed before continuing
	if err := zw.Close(); err != nil {
		return fmt.Errorf("unable to close output archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to finalize output file: %w", err)
	}
	return nil
}

func writeGenerated(zw *zip.Writer, name string, gen func() ([]byte, error)) error {
	data, err := gen()
	if err != nil {
		return fmt.Errorf("unable to serialize %s: %w", name, err)
	}
	if err := writeData(zw, name, data); err != nil {
		return fmt.Errorf("unable to write %s: %w", name, err)
	}
	return nil
}

func writeData(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func copyZipWithoutDataDescriptors(from, to string) error {

	out, err := os.Create(to)
	if err != nil {
		return fmt.Errorf("unable to create target file (%s): %w", to, err)
	}
	defer out.Close()

	r, err := fixzip.OpenReader(from)
	if err != nil {
		return fmt.Errorf("unable to read archive file (%s): %w", from, err)
	}
	defer r.Close()

	w := fixzip.NewWriter(out)
	defer w.Close()

	for _, file := range r.File {
		// unset data descriptor flag.
		file.Flags &= ^fixzip.FlagDataDescriptor

		// copy zip entry
		if err := w.CopyFile(file); err != nil {
			return fmt.Errorf("unable to write target file (%s): %w", to, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("unable to finalize target file (%s): %w", to, err)
	}
	return out.Close()
}

func copyFile(src, dst string) error {

	sourceFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	destinationFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer destinationFile.Close()

	if _, err = io.Copy(destinationFile, sourceFile); err != nil {
		return fmt.Errorf("failed to copy file contents: %w", err)
	}

	if err = destinationFile.Close(); err != nil {
		return fmt.Errorf("failed to close destination file: %w", err)
	}
	return nil
}

// emu converts inches to English Metric Units.
func emu(inches float64) int64 {
	return int64(math.Round(inches * docx.EMUPerInch))
}
